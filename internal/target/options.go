package target

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Options is the closed set of boolean compilation flags this backend
// recognizes. The zero value leaves every feature off.
type Options struct {
	// NoPython compiles fully native code with no host-object boxing
	// inside function bodies.
	NoPython bool `toml:"nopython"`

	// NoGIL releases the host execution lock around native calls.
	NoGIL bool `toml:"nogil"`

	// ForceObj forces host-object marshaling even where native code
	// would be possible.
	ForceObj bool `toml:"forceobj"`

	// LoopLift permits falling back to partially-native compilation
	// with host-object fallback when full native compilation fails.
	LoopLift bool `toml:"looplift"`

	// Wraparound emits negative-index wraparound for array indexing.
	Wraparound bool `toml:"wraparound"`

	// BoundCheck emits array bounds checks.
	BoundCheck bool `toml:"boundcheck"`
}

// OptionNames lists the recognized flag names; anything else in a
// [jit] table is rejected at load time.
func OptionNames() []string {
	return []string{"nopython", "nogil", "forceobj", "looplift", "wraparound", "boundcheck"}
}

// Validate rejects contradictory flag combinations.
func (o Options) Validate() error {
	if o.NoPython && o.ForceObj {
		return fmt.Errorf("target: nopython and forceobj are mutually exclusive")
	}
	return nil
}

type jitManifest struct {
	JIT Options `toml:"jit"`
}

// DecodeOptionsTOML reads the [jit] table out of manifest text.
// Unrecognized keys under [jit] are configuration errors; keys in
// other tables belong to other loaders and pass through.
func DecodeOptionsTOML(text string) (Options, error) {
	var man jitManifest
	md, err := toml.Decode(text, &man)
	if err != nil {
		return Options{}, fmt.Errorf("target: parse options: %w", err)
	}
	for _, key := range md.Undecoded() {
		name := key.String()
		if strings.HasPrefix(name, "jit.") {
			return Options{}, fmt.Errorf("target: unknown option %q (recognized: %s)",
				strings.TrimPrefix(name, "jit."), strings.Join(OptionNames(), ", "))
		}
	}
	if err := man.JIT.Validate(); err != nil {
		return Options{}, err
	}
	return man.JIT, nil
}

// LoadOptionsFile is DecodeOptionsTOML over a manifest file.
func LoadOptionsFile(path string) (Options, error) {
	var man jitManifest
	md, err := toml.DecodeFile(path, &man)
	if err != nil {
		return Options{}, fmt.Errorf("target: %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		name := key.String()
		if strings.HasPrefix(name, "jit.") {
			return Options{}, fmt.Errorf("target: %s: unknown option %q (recognized: %s)",
				path, strings.TrimPrefix(name, "jit."), strings.Join(OptionNames(), ", "))
		}
	}
	if err := man.JIT.Validate(); err != nil {
		return Options{}, fmt.Errorf("target: %s: %w", path, err)
	}
	return man.JIT, nil
}
