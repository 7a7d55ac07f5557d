package target

import (
	"strings"
	"testing"
)

func TestDecodeOptionsTOML(t *testing.T) {
	opts, err := DecodeOptionsTOML(`
[package]
name = "demo"

[jit]
nopython = true
nogil = true
boundcheck = true
`)
	if err != nil {
		t.Fatalf("DecodeOptionsTOML: %v", err)
	}
	if !opts.NoPython || !opts.NoGIL || !opts.BoundCheck {
		t.Errorf("flags = %+v", opts)
	}
	if opts.ForceObj || opts.LoopLift || opts.Wraparound {
		t.Errorf("unset flags should stay false: %+v", opts)
	}
}

func TestDecodeOptionsTOML_Empty(t *testing.T) {
	opts, err := DecodeOptionsTOML("")
	if err != nil {
		t.Fatalf("DecodeOptionsTOML(empty): %v", err)
	}
	if opts != (Options{}) {
		t.Errorf("zero manifest = %+v, want zero options", opts)
	}
}

func TestDecodeOptionsTOML_UnknownFlag(t *testing.T) {
	_, err := DecodeOptionsTOML(`
[jit]
nopython = true
turbo = true
`)
	if err == nil {
		t.Fatal("unknown [jit] key: expected error")
	}
	if !strings.Contains(err.Error(), "turbo") {
		t.Errorf("error %q does not name the bad key", err)
	}
}

func TestDecodeOptionsTOML_ForeignTablesPass(t *testing.T) {
	// Keys outside [jit] belong to other loaders.
	if _, err := DecodeOptionsTOML("[package]\nname = \"x\"\nextra = 1\n"); err != nil {
		t.Errorf("foreign table keys rejected: %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := (Options{NoPython: true, ForceObj: true}).Validate(); err == nil {
		t.Error("nopython+forceobj: expected error")
	}
	if err := (Options{NoPython: true}).Validate(); err != nil {
		t.Errorf("nopython alone: %v", err)
	}
}

func TestOptionNamesClosedSet(t *testing.T) {
	names := OptionNames()
	if len(names) != 6 {
		t.Fatalf("recognized flags = %d, want 6", len(names))
	}
	seen := make(map[string]bool)
	for _, n := range names {
		seen[n] = true
	}
	for _, want := range []string{"nopython", "nogil", "forceobj", "looplift", "wraparound", "boundcheck"} {
		if !seen[want] {
			t.Errorf("missing flag %q", want)
		}
	}
}
