package hostrt

import (
	"encoding/binary"
	"fmt"

	"drift/internal/abi"
)

// arenaBase keeps valid arena addresses clearly apart from the null
// pointer and small integers.
const arenaBase = 0x100000

// Arena is the native-memory region backing Environment and Closure
// records and any other raw allocations compiled code touches.
// Addresses are stable for the arena's lifetime; nothing is freed
// individually (record lifetime is governed by the object refcounts
// stored inside the records, not by the arena).
type Arena struct {
	mem []byte
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc reserves size bytes, zeroed, aligned to the runtime word, and
// returns their address.
func (a *Arena) Alloc(size int) uint64 {
	if size < 0 {
		size = 0
	}
	if rem := len(a.mem) % abi.WordSize; rem != 0 {
		a.mem = append(a.mem, make([]byte, abi.WordSize-rem)...)
	}
	addr := arenaBase + uint64(len(a.mem))
	a.mem = append(a.mem, make([]byte, size)...)
	return addr
}

// Contains reports whether addr points into the arena.
func (a *Arena) Contains(addr uint64) bool {
	return addr >= arenaBase && addr < arenaBase+uint64(len(a.mem))
}

// ReadWord loads the word at addr.
func (a *Arena) ReadWord(addr uint64) (uint64, error) {
	off, err := a.offset(addr, "read")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(a.mem[off:]), nil
}

// WriteWord stores a word at addr.
func (a *Arena) WriteWord(addr uint64, w uint64) error {
	off, err := a.offset(addr, "write")
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(a.mem[off:], w)
	return nil
}

func (a *Arena) offset(addr uint64, op string) (int, error) {
	if addr < arenaBase || addr+abi.WordSize > arenaBase+uint64(len(a.mem)) {
		return 0, fmt.Errorf("hostrt: %s of word at %#x outside arena", op, addr)
	}
	return int(addr - arenaBase), nil
}

// Environment is the per-function record of captured state: the
// globals mapping and the ordered consts sequence. One Environment is
// shared by every closure of its function. The record layout in the
// arena follows the abi constants; the typed fields here are the
// runtime's own view of the same data.
type Environment struct {
	Addr    uint64
	Globals Handle
	Consts  Handle
}

// envTypeTag and closureTypeTag are the type words written into record
// headers. Compiled code never inspects them; they make arena dumps
// readable.
const (
	envTypeTag     = 0xE11
	closureTypeTag = 0xC10
)

// NewEnvironment allocates an Environment record in the arena. The
// environment takes over the caller's references to globals and
// consts.
func (rt *Runtime) NewEnvironment(globals, consts Handle) (*Environment, error) {
	addr := rt.arena.Alloc(abi.EnvSize)
	if err := rt.arena.WriteWord(addr+abi.ObjRefcountOffset, 1); err != nil {
		return nil, err
	}
	if err := rt.arena.WriteWord(addr+abi.ObjTypeOffset, envTypeTag); err != nil {
		return nil, err
	}
	body := addr + abi.EnvBodyOffset
	if err := rt.arena.WriteWord(body+abi.EnvGlobalsSlot*abi.WordSize, uint64(globals)); err != nil {
		return nil, err
	}
	if err := rt.arena.WriteWord(body+abi.EnvConstsSlot*abi.WordSize, uint64(consts)); err != nil {
		return nil, err
	}
	return &Environment{Addr: addr, Globals: globals, Consts: consts}, nil
}

// NewClosure allocates a Closure record embedding env's address and
// returns the closure address.
func (rt *Runtime) NewClosure(env *Environment) (uint64, error) {
	if env == nil {
		return 0, fmt.Errorf("hostrt: closure requires an environment")
	}
	addr := rt.arena.Alloc(abi.ClosureSize)
	if err := rt.arena.WriteWord(addr+abi.ObjRefcountOffset, 1); err != nil {
		return 0, err
	}
	if err := rt.arena.WriteWord(addr+abi.ObjTypeOffset, closureTypeTag); err != nil {
		return 0, err
	}
	body := addr + abi.ClosureBodyOffset
	if err := rt.arena.WriteWord(body+abi.ClosureEnvSlot*abi.WordSize, env.Addr); err != nil {
		return 0, err
	}
	return addr, nil
}
