package types

import (
	"fmt"

	"fortio.org/safecast"

	"drift/internal/abi"
)

// LayoutErrorKind enumerates layout computation failures.
type LayoutErrorKind uint8

const (
	// LayoutErrInvalidType indicates a type with no storage layout.
	LayoutErrInvalidType LayoutErrorKind = iota + 1
	// LayoutErrNegativeRank indicates an array rank below zero.
	LayoutErrNegativeRank
	// LayoutErrRankOverflow indicates a rank too large to size.
	LayoutErrRankOverflow
)

// LayoutError reports a failed size or alignment query.
type LayoutError struct {
	Kind LayoutErrorKind
	Type Type
	Err  error
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrInvalidType:
		return fmt.Sprintf("type %s has no storage layout", e.Type)
	case LayoutErrNegativeRank:
		return fmt.Sprintf("negative array rank: %d", e.Type.Ndim)
	case LayoutErrRankOverflow:
		if e.Err != nil {
			return fmt.Sprintf("array rank %d overflows descriptor size: %v", e.Type.Ndim, e.Err)
		}
		return fmt.Sprintf("array rank %d overflows descriptor size", e.Type.Ndim)
	default:
		return fmt.Sprintf("layout error kind=%d for %s", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error { return e.Err }

// Layout computes storage sizes and alignments for a target platform.
type Layout struct {
	Target abi.Platform
}

// NewLayout creates a layout engine for the given target.
func NewLayout(target abi.Platform) *Layout {
	return &Layout{Target: target}
}

// SizeOf returns the storage size of a type in bytes.
//
// Array descriptors have a rank-dependent, element-independent size:
// a fixed head plus shape and stride words per dimension. Runtime
// words stay 64-bit even on 32-bit targets, so the result does not
// vary with Target word width.
func (l *Layout) SizeOf(t Type) (int, error) {
	switch t.Kind {
	case Void:
		return 0, nil
	case Bool:
		return 1, nil
	case Int32:
		return 4, nil
	case Int64, Float64, Object, RawPtr:
		return abi.WordSize, nil
	case Array:
		if t.Ndim < 0 {
			return 0, &LayoutError{Kind: LayoutErrNegativeRank, Type: t}
		}
		words := int64(abi.ArrayHeadWords) + int64(abi.ArrayWordsPerDim)*int64(t.Ndim)
		size, err := safecast.Conv[int](words * abi.WordSize)
		if err != nil {
			return 0, &LayoutError{Kind: LayoutErrRankOverflow, Type: t, Err: err}
		}
		return size, nil
	default:
		return 0, &LayoutError{Kind: LayoutErrInvalidType, Type: t}
	}
}

// AlignOf returns the alignment requirement of a type in bytes.
func (l *Layout) AlignOf(t Type) (int, error) {
	switch t.Kind {
	case Void, Bool:
		return 1, nil
	case Int32:
		return 4, nil
	case Int64, Float64, Object, RawPtr, Array:
		return abi.WordSize, nil
	default:
		return 0, &LayoutError{Kind: LayoutErrInvalidType, Type: t}
	}
}
