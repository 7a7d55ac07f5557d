// Package runtimeembed provides the embedded native ABI header shared
// with the Drift runtime allocator.
package runtimeembed

import (
	"embed"
	"io/fs"
)

//go:embed native/*.h
var nativeRuntimeFS embed.FS

// NativeRuntimeFS exposes the embedded runtime headers.
func NativeRuntimeFS() fs.FS {
	return nativeRuntimeFS
}

// ABIHeader returns the text of drift_rt.h, the layout contract the
// backend assumes; artifacts carry it as a comment banner.
func ABIHeader() string {
	data, err := nativeRuntimeFS.ReadFile("native/drift_rt.h")
	if err != nil {
		// The file is embedded at build time; absence is a packaging
		// bug, not a runtime condition.
		panic(err)
	}
	return string(data)
}
