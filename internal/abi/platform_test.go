package abi

import "testing"

func TestResolvePlatform(t *testing.T) {
	for _, tc := range []struct {
		goos, goarch string
		family       OSFamily
		powi         bool
		is32         bool
	}{
		{"linux", "amd64", FamilyLinux, true, false},
		{"android", "arm64", FamilyLinux, true, false},
		{"windows", "amd64", FamilyWindows, true, false},
		{"darwin", "arm64", FamilyDarwin, false, false},
		{"ios", "arm64", FamilyDarwin, false, false},
		{"freebsd", "amd64", FamilyOther, false, false},
		{"linux", "386", FamilyLinux, true, true},
		{"linux", "arm", FamilyLinux, true, true},
		{"linux", "mips", FamilyLinux, true, true},
		{"linux", "mipsle", FamilyLinux, true, true},
	} {
		p := ResolvePlatform(tc.goos, tc.goarch)
		if p.Family != tc.family {
			t.Errorf("%s/%s: family = %s, want %s", tc.goos, tc.goarch, p.Family, tc.family)
		}
		if p.NeedsPowiFixup != tc.powi {
			t.Errorf("%s/%s: NeedsPowiFixup = %v, want %v", tc.goos, tc.goarch, p.NeedsPowiFixup, tc.powi)
		}
		if p.Is32Bit != tc.is32 {
			t.Errorf("%s/%s: Is32Bit = %v, want %v", tc.goos, tc.goarch, p.Is32Bit, tc.is32)
		}
		if p.Arch != tc.goarch {
			t.Errorf("%s/%s: Arch = %q", tc.goos, tc.goarch, p.Arch)
		}
	}
}

func TestHostPlatformWordBits(t *testing.T) {
	p := HostPlatform()
	if p.WordBits != 32 && p.WordBits != 64 {
		t.Errorf("WordBits = %d", p.WordBits)
	}
	if p.Is32Bit != (p.WordBits == 32) {
		t.Error("Is32Bit disagrees with WordBits")
	}
}

func TestRecordLayoutConstants(t *testing.T) {
	if ClosureSize != ObjHeaderSize+WordSize {
		t.Errorf("ClosureSize = %d", ClosureSize)
	}
	if EnvSize != ObjHeaderSize+2*WordSize {
		t.Errorf("EnvSize = %d", EnvSize)
	}
	if ClosureBodyOffset != ObjHeaderSize || EnvBodyOffset != ObjHeaderSize {
		t.Error("body offsets must follow the object header")
	}
}
