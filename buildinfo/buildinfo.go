// Package buildinfo reports the running binary's version and its storage
// engine's reported version string, surfaced by the control surface's
// status command. Grounded on original_source's
// Helper/Versions.cpp/getLibraryVersions, which concatenates every linked
// library's version string for the original binary's startup banner;
// generalized here to Go's module-based dependency reporting via
// runtime/debug instead of enumerating individual C++ libraries by hand.
package buildinfo

import (
	"context"
	"runtime"
	"runtime/debug"
)

// Dependency is one module Go's build recorded a version for.
type Dependency struct {
	Path    string
	Version string
}

// Info is the full version report: the binary's own module version, the Go
// toolchain that built it, and every dependency module it was built
// against.
type Info struct {
	ModulePath   string
	Version      string
	GoVersion    string
	OS           string
	Arch         string
	Dependencies []Dependency
}

// Read collects Info from the running binary via debug.ReadBuildInfo. ok is
// false when build info is unavailable (e.g. a binary built without module
// support), in which case only GoVersion/OS/Arch are populated.
func Read() (Info, bool) {
	info := Info{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info, false
	}

	info.ModulePath = bi.Main.Path
	info.Version = bi.Main.Version
	for _, dep := range bi.Deps {
		info.Dependencies = append(info.Dependencies, Dependency{Path: dep.Path, Version: dep.Version})
	}
	return info, true
}

// engineVersioner is the one store.Backend method buildinfo depends on,
// kept minimal so this package doesn't need to import store.
type engineVersioner interface {
	EngineVersion(ctx context.Context) (string, error)
}

// Report bundles Read's binary-level Info together with the storage
// engine's own reported version string, mirroring
// getLibraryVersions' single combined banner.
type Report struct {
	Info
	EngineVersion string
}

// Collect builds a full Report, including a live query against backend for
// the storage engine's version.
func Collect(ctx context.Context, backend engineVersioner) (Report, error) {
	info, _ := Read()
	version, err := backend.EngineVersion(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{Info: info, EngineVersion: version}, nil
}
