package esp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ExpandPaths replaces each directory in paths with the plugin files it
// directly contains, sorted by name. Files are kept as given, whatever their
// extension. Only exts count as plugins; nil means PluginExtensions.
func ExpandPaths(paths []string, exts []string) ([]string, error) {
	if exts == nil {
		exts = PluginExtensions
	}
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("esp: list %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.Type().IsRegular() && HasExtension(e.Name(), exts) {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
