package ir

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"drift/internal/abi"
	"drift/internal/types"
)

// FuncDesc describes one function as produced by the front end:
// its qualified name, declared signature, compilation mode and the
// generated symbol names. Treated as immutable after construction.
type FuncDesc struct {
	// QualName is the dotted qualified name in the host program,
	// e.g. "pkg.mod.add".
	QualName string

	// ModuleKey identifies the defining host module for executable
	// lookup.
	ModuleKey string

	// Doc is the function's documentation string, carried through to
	// the executable.
	Doc string

	// Sig is the declared native signature.
	Sig types.Signature

	// Native marks functions compiled without host-object boxing.
	// Only native functions are tracked in the registry.
	Native bool

	// Sym is the mangled symbol of the native function body.
	Sym string

	// WrapperSym is the symbol of the host-convention entry wrapper.
	WrapperSym string
}

// NewFuncDesc builds a descriptor, deriving both symbol names from the
// qualified name and signature.
func NewFuncDesc(qualName, moduleKey, doc string, sig types.Signature, native bool) *FuncDesc {
	mangled := Mangle(qualName, sig)
	return &FuncDesc{
		QualName:   qualName,
		ModuleKey:  moduleKey,
		Doc:        doc,
		Sig:        sig,
		Native:     native,
		Sym:        mangled,
		WrapperSym: abi.WrapperPrefix + strings.TrimPrefix(mangled, abi.FuncPrefix),
	}
}

// ShortName returns the last component of the qualified name.
func (d *FuncDesc) ShortName() string {
	if i := strings.LastIndexByte(d.QualName, '.'); i >= 0 {
		return d.QualName[i+1:]
	}
	return d.QualName
}

// Mangle produces the linker-safe symbol for a qualified name and
// signature. The qualified name is NFKC-normalized first: host
// identifiers are Unicode and distinct code point sequences for the
// same identifier must map to one symbol. Each dotted segment is
// length-prefixed after escaping, then the parameter types are
// appended as one code each.
func Mangle(qualName string, sig types.Signature) string {
	var sb strings.Builder
	sb.WriteString(abi.FuncPrefix)
	for _, seg := range strings.Split(norm.NFKC.String(qualName), ".") {
		esc := escapeSegment(seg)
		fmt.Fprintf(&sb, "%d%s", len(esc), esc)
	}
	sb.WriteByte('E')
	for _, p := range sig.Params {
		sb.WriteString(typeCode(p))
	}
	return sb.String()
}

func escapeSegment(seg string) string {
	var sb strings.Builder
	for _, r := range seg {
		switch {
		case r == '_':
			sb.WriteString("__")
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "_%04x", r)
		}
	}
	return sb.String()
}

func typeCode(t types.Type) string {
	switch t.Kind {
	case types.Void:
		return "v"
	case types.Bool:
		return "b"
	case types.Int32:
		return "i"
	case types.Int64:
		return "x"
	case types.Float64:
		return "d"
	case types.Object:
		return "o"
	case types.RawPtr:
		return "p"
	case types.Array:
		return fmt.Sprintf("A%d%s", t.Ndim, typeCode(types.Type{Kind: t.Elem}))
	default:
		return "?"
	}
}
