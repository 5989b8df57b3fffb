package samples

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Sample is a local Python source file from the samples directory.
type Sample struct {
	Name   string
	Path   string
	Source string
}

const defaultSample = `def func(x):
    """Calculate the square of a number"""
    return x * x
`

// Load reads all .py files from dir, sorted by name. An empty or missing
// directory is seeded with a default sample so first runs have something
// to work with.
func Load(dir string) ([]Sample, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating samples directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.py"))
	if err != nil {
		return nil, fmt.Errorf("scanning samples directory: %w", err)
	}

	if len(matches) == 0 {
		seed := filepath.Join(dir, "sample1.py")
		if err := os.WriteFile(seed, []byte(defaultSample), 0o644); err != nil {
			return nil, fmt.Errorf("seeding samples directory: %w", err)
		}
		matches = []string{seed}
	}

	sort.Strings(matches)

	var out []Sample
	for _, p := range matches {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading sample %s: %w", p, err)
		}
		out = append(out, Sample{
			Name:   filepath.Base(p),
			Path:   p,
			Source: string(data),
		})
	}
	return out, nil
}

// Find returns the sample with the given file name.
func Find(list []Sample, name string) (Sample, error) {
	for _, s := range list {
		if s.Name == name {
			return s, nil
		}
	}
	return Sample{}, fmt.Errorf("sample not found: %s", name)
}
