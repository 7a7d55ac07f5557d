package target

import "drift/internal/codegen"

// nativeEntry is the registered (symbol, address) pair of one compiled
// native-mode function.
type nativeEntry struct {
	sym  string
	addr codegen.Addr
}

// nativeRegistry tracks every compiled native function by its callable
// so the driver can later invalidate it. Keys are unique; removing an
// absent key is a contract violation. Mutation is serialized by the
// context's single-threaded compilation discipline.
type nativeRegistry struct {
	entries map[*Executable]nativeEntry
}

func newNativeRegistry() *nativeRegistry {
	return &nativeRegistry{entries: make(map[*Executable]nativeEntry)}
}

func (r *nativeRegistry) insert(exe *Executable, sym string, addr codegen.Addr) error {
	if _, ok := r.entries[exe]; ok {
		return contractErr(ErrAlreadyRegistered, "callable %s", exe.QualName)
	}
	r.entries[exe] = nativeEntry{sym: sym, addr: addr}
	return nil
}

func (r *nativeRegistry) remove(exe *Executable) error {
	if _, ok := r.entries[exe]; !ok {
		name := "<nil>"
		if exe != nil {
			name = exe.QualName
		}
		return contractErr(ErrNotRegistered, "callable %s", name)
	}
	delete(r.entries, exe)
	return nil
}

func (r *nativeRegistry) lookup(exe *Executable) (nativeEntry, bool) {
	e, ok := r.entries[exe]
	return e, ok
}

func (r *nativeRegistry) size() int { return len(r.entries) }
