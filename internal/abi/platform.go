package abi

import "runtime"

// OSFamily groups operating systems by runtime behavior relevant to
// code generation.
type OSFamily uint8

const (
	// FamilyLinux covers linux and android.
	FamilyLinux OSFamily = iota
	// FamilyWindows covers windows.
	FamilyWindows
	// FamilyDarwin covers darwin and ios.
	FamilyDarwin
	// FamilyOther covers everything else (BSDs, illumos, ...).
	FamilyOther
)

// Platform is a capability descriptor for the compilation target.
// It is resolved once and branched on by flag, never by comparing
// platform name strings at rewrite sites.
type Platform struct {
	Family   OSFamily
	Arch     string
	WordBits int

	// NeedsPowiFixup is set where the execution environment cannot
	// resolve the power intrinsic and calls must be routed through the
	// runtime pow helper instead.
	NeedsPowiFixup bool

	// Is32Bit is set on 32-bit targets, where 64-bit division and
	// remainder lower to runtime helper calls to avoid an unavailable
	// support routine.
	Is32Bit bool
}

// HostPlatform resolves the descriptor for the machine the backend is
// running on.
func HostPlatform() Platform {
	return ResolvePlatform(runtime.GOOS, runtime.GOARCH)
}

// ResolvePlatform builds a capability descriptor from an os/arch pair.
// Split out from HostPlatform so tests can pin foreign targets.
func ResolvePlatform(goos, goarch string) Platform {
	p := Platform{Arch: goarch, WordBits: 64}

	switch goos {
	case "linux", "android":
		p.Family = FamilyLinux
	case "windows":
		p.Family = FamilyWindows
	case "darwin", "ios":
		p.Family = FamilyDarwin
	default:
		p.Family = FamilyOther
	}

	switch goarch {
	case "386", "arm", "mips", "mipsle":
		p.WordBits = 32
	}

	p.NeedsPowiFixup = p.Family == FamilyLinux || p.Family == FamilyWindows
	p.Is32Bit = p.WordBits == 32
	return p
}

// String returns the family name for diagnostics.
func (f OSFamily) String() string {
	switch f {
	case FamilyLinux:
		return "linux"
	case FamilyWindows:
		return "windows"
	case FamilyDarwin:
		return "darwin"
	default:
		return "other"
	}
}
