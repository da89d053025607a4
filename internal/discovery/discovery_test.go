package discovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"logai/internal/catalog"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverHourly(t *testing.T) {
	root := t.TempDir()
	template := filepath.Join(root, "{YYYY}", "{MM}", "{DD}", "{HH}", "app.log")

	writeFile(t, filepath.Join(root, "2026", "01", "06", "14", "app.log"))
	writeFile(t, filepath.Join(root, "2026", "01", "06", "15", "app.log"))

	desc := catalog.ServiceDescriptor{Name: "svc-A", PathTemplate: template}
	window := Window{
		Start: time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 16, 0, 0, 0, time.UTC),
	}

	paths, err := Discover(desc, window, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(paths), paths)
	}
}

func TestDiscoverCrossesDayBoundary(t *testing.T) {
	root := t.TempDir()
	template := filepath.Join(root, "{YYYY}", "{MM}", "{DD}", "{HH}", "app.log")

	writeFile(t, filepath.Join(root, "2026", "01", "06", "23", "app.log"))
	writeFile(t, filepath.Join(root, "2026", "01", "07", "00", "app.log"))

	desc := catalog.ServiceDescriptor{Name: "svc-A", PathTemplate: template}
	window := Window{
		Start: time.Date(2026, 1, 6, 23, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 7, 1, 0, 0, 0, time.UTC),
	}

	paths, err := Discover(desc, window, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected files from both days, got %d: %v", len(paths), paths)
	}
}

func TestDiscoverMissingHoursIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	template := filepath.Join(root, "{YYYY}", "{MM}", "{DD}", "{HH}", "app.log")
	desc := catalog.ServiceDescriptor{Name: "svc-A", PathTemplate: template}
	window := Window{
		Start: time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 16, 0, 0, 0, time.UTC),
	}

	paths, err := Discover(desc, window, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected no files, got %v", paths)
	}
}

func TestDiscoverNoDatePlaceholders(t *testing.T) {
	root := t.TempDir()
	flat := filepath.Join(root, "flat.log")
	writeFile(t, flat)

	desc := catalog.ServiceDescriptor{Name: "svc-flat", PathTemplate: flat}
	paths, err := Discover(desc, Window{}, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != flat {
		t.Fatalf("expected %v, got %v", flat, paths)
	}
}

func TestDiscoverGUIDWildcard(t *testing.T) {
	root := t.TempDir()
	template := filepath.Join(root, "{YYYY}", "{MM}", "{DD}", "{HH}", "{guid}", "app.log")
	writeFile(t, filepath.Join(root, "2026", "01", "06", "14", "abc123", "app.log"))

	desc := catalog.ServiceDescriptor{Name: "svc-A", PathTemplate: template}
	window := Window{
		Start: time.Date(2026, 1, 6, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 14, 30, 0, 0, time.UTC),
	}

	paths, err := Discover(desc, window, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 file via guid wildcard, got %v", paths)
	}
}
