// Package abi defines the binary contract between the JIT backend and
// the Drift native runtime. The offsets and symbol names here must be
// kept in sync with runtime/native/drift_rt.h; the runtime allocator
// lays out Closure and Environment records using the same header, and a
// mismatch corrupts memory without any error the backend could detect.
package abi

// Version of the layout contract. Bumped together with drift_rt.h.
const Version = 2

// WordSize is the size in bytes of a runtime word (handles, addresses
// and native pointers). The Drift runtime is 64-bit only; 32-bit
// targets still use 64-bit runtime words and route wide arithmetic
// through helper calls (see Platform.Is32Bit).
const WordSize = 8

// Object header layout. Every runtime record starts with this header.
const (
	// ObjHeaderSize is the size of the common object header
	// (refcount word + type word).
	ObjHeaderSize = 16

	// ObjRefcountOffset is the offset of the reference count word.
	ObjRefcountOffset = 0

	// ObjTypeOffset is the offset of the type tag word.
	ObjTypeOffset = 8
)

// Closure record layout. A closure embeds the address of exactly one
// Environment directly after the object header.
const (
	// ClosureBodyOffset is the byte offset from a closure address to
	// its body.
	ClosureBodyOffset = ObjHeaderSize

	// ClosureEnvSlot is the word index of the environment address
	// within the closure body.
	ClosureEnvSlot = 0

	// ClosureSize is the total size of a closure record.
	ClosureSize = ClosureBodyOffset + 1*WordSize
)

// Environment record layout. The body holds the globals mapping handle
// and the consts sequence handle, in that order.
const (
	// EnvBodyOffset is the byte offset from an environment address to
	// its body.
	EnvBodyOffset = ObjHeaderSize

	// EnvGlobalsSlot is the word index of the globals handle within
	// the environment body.
	EnvGlobalsSlot = 0

	// EnvConstsSlot is the word index of the consts handle within the
	// environment body.
	EnvConstsSlot = 1

	// EnvSize is the total size of an environment record.
	EnvSize = EnvBodyOffset + 2*WordSize
)

// Array descriptor layout, in words. The descriptor is rank-dependent:
// a fixed five-word head followed by shape and stride words per
// dimension. Element type never changes the descriptor size.
const (
	// ArrayHeadWords counts the fixed head: refcount header word pair,
	// parent, item count and data pointer.
	ArrayHeadWords = 5

	// ArrayWordsPerDim counts the per-dimension words (shape, stride).
	ArrayWordsPerDim = 2
)

// Runtime symbols the backend emits calls to. The JIT engine binds
// these to the in-process runtime; AOT artifacts declare them extern.
const (
	SymIncref = "drift_incref"
	SymDecref = "drift_decref"

	SymLockAcquire = "drift_lock_acquire"
	SymLockRelease = "drift_lock_release"

	SymUnboxInt   = "drift_unbox_i64"
	SymUnboxFloat = "drift_unbox_f64"
	SymBoxInt     = "drift_box_i64"
	SymBoxFloat   = "drift_box_f64"
	SymBoxNone    = "drift_box_none"

	SymErrOccurred    = "drift_err_occurred"
	SymRaiseArgError  = "drift_raise_arg_error"
	SymRaiseCallError = "drift_raise_call_error"

	SymPow    = "drift_pow"
	SymSqrt   = "drift_sqrt"
	SymFmod   = "drift_fmod"
	SymSitofp = "drift_sitofp"

	SymSDiv64 = "drift_sdiv64"
	SymSRem64 = "drift_srem64"
	SymUDiv64 = "drift_udiv64"
	SymURem64 = "drift_urem64"

	SymPrint      = "drift_print"
	SymRandomNext = "drift_random_next"

	SymArrayLen    = "drift_array_len"
	SymArraySizeof = "drift_array_sizeof"

	SymObjAdd = "drift_obj_add"
)

// IntrPowi is the power intrinsic produced by lowering for integer
// exponents. Some execution environments cannot resolve it; the
// post-lowering fixups rewrite it into SymSitofp + SymPow calls.
const IntrPowi = "intr.powi.f64"

// Symbol name prefixes for generated functions.
const (
	// FuncPrefix starts every mangled native function symbol.
	FuncPrefix = "_ZNdrift"

	// WrapperPrefix starts every host-convention wrapper symbol.
	WrapperPrefix = "_ZNdriftW"
)
