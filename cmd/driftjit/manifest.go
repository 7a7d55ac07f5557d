package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"drift/internal/target"
)

type projectManifest struct {
	Path string
	Root string
	Name string
	JIT  target.Options
}

type manifestConfig struct {
	Package packageConfig `toml:"package"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

func findDriftToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "drift.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadProjectManifest walks up from startDir looking for drift.toml.
// The [package] table names the project; the [jit] table is validated
// by the target options loader, which rejects unknown flags.
func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	path, ok, err := findDriftToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}

	var cfg manifestConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, true, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return nil, true, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, true, fmt.Errorf("%s: missing [package].name", path)
	}

	jit, err := target.LoadOptionsFile(path)
	if err != nil {
		return nil, true, err
	}

	return &projectManifest{
		Path: path,
		Root: filepath.Dir(path),
		Name: cfg.Package.Name,
		JIT:  jit,
	}, true, nil
}

// resolveTargetOptions merges the manifest [jit] table (when found)
// with the command-line flag overrides.
func resolveTargetOptions(cmd flagGetter) (target.Options, error) {
	manifest, found, err := loadProjectManifest(".")
	if err != nil {
		return target.Options{}, err
	}
	var opts target.Options
	if found {
		opts = manifest.JIT
	}
	if v, err := cmd.GetBool("nogil"); err == nil && v {
		opts.NoGIL = true
	}
	if v, err := cmd.GetBool("forceobj"); err == nil && v {
		opts.ForceObj = true
	}
	if err := opts.Validate(); err != nil {
		return target.Options{}, err
	}
	return opts, nil
}

type flagGetter interface {
	GetBool(name string) (bool, error)
}
