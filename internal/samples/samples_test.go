package samples

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedsEmptyDir(t *testing.T) {
	dir := t.TempDir()

	list, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 1 || list[0].Name != "sample1.py" {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Source == "" {
		t.Error("seeded sample should have content")
	}

	// The seed is persisted, not synthetic
	if _, err := os.Stat(filepath.Join(dir, "sample1.py")); err != nil {
		t.Errorf("seed file not written: %v", err)
	}
}

func TestLoadSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta.py", "alpha.py", "mid.py"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x = 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Non-Python files are ignored
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644)

	list, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list = %d entries, want 3", len(list))
	}
	want := []string{"alpha.py", "mid.py", "zeta.py"}
	for i, w := range want {
		if list[i].Name != w {
			t.Errorf("list[%d].Name = %q, want %q", i, list[i].Name, w)
		}
	}
}

func TestFind(t *testing.T) {
	list := []Sample{{Name: "a.py"}, {Name: "b.py"}}

	s, err := Find(list, "b.py")
	if err != nil || s.Name != "b.py" {
		t.Errorf("Find(b.py) = %+v, %v", s, err)
	}
	if _, err := Find(list, "missing.py"); err == nil {
		t.Error("Find of unknown sample should fail")
	}
}
