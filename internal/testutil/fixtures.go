package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/roach88/contentgraph/internal/config"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/store"
)

// ConfigDir returns the repository's example configuration directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "config")
}

// ContentRepository loads the example configuration: one "language"
// dimension (mul > de > gsw, mul > en) and the Acme node types.
func ContentRepository(t testing.TB) *config.ContentRepository {
	t.Helper()
	repo, errs := config.LoadDir(ConfigDir())
	if len(errs) > 0 {
		t.Fatalf("load example config: %v", errs)
	}
	return repo
}

// OpenStore opens a fresh database in a temporary directory.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Point returns the dimension space point {"language": lang}.
func Point(lang string) dimension.DimensionSpacePoint {
	return dimension.NewDimensionSpacePoint(map[string]string{"language": lang})
}

// Origin returns the origin {"language": lang}.
func Origin(lang string) dimension.OriginDimensionSpacePoint {
	return dimension.OriginFromPoint(Point(lang))
}
