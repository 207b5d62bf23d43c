package buildinfo

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

type stubVersioner struct {
	version string
	err     error
}

func (s stubVersioner) EngineVersion(ctx context.Context) (string, error) {
	return s.version, s.err
}

func TestReadAlwaysPopulatesRuntimeFields(t *testing.T) {
	info, _ := Read()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("OS/Arch = %q/%q, want %q/%q", info.OS, info.Arch, runtime.GOOS, runtime.GOARCH)
	}
}

func TestCollectIncludesEngineVersion(t *testing.T) {
	report, err := Collect(context.Background(), stubVersioner{version: "8.0.35"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.EngineVersion != "8.0.35" {
		t.Errorf("EngineVersion = %q, want %q", report.EngineVersion, "8.0.35")
	}
}

func TestCollectPropagatesBackendError(t *testing.T) {
	_, err := Collect(context.Background(), stubVersioner{err: errors.New("connection refused")})
	if err == nil {
		t.Fatalf("expected an error when the backend query fails")
	}
}
