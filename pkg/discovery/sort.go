package discovery

import (
	"path/filepath"
	"sort"
	"strings"
)

// ComparePaths compares two paths component by component, so "a/z" sorts
// before "a.txt" even though '/' > '.' bytewise.
func ComparePaths(a, b string) int {
	ac := splitComponents(a)
	bc := splitComponents(b)

	for i := 0; i < len(ac) && i < len(bc); i++ {
		if c := strings.Compare(ac[i], bc[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(ac) < len(bc):
		return -1
	case len(ac) > len(bc):
		return 1
	default:
		return 0
	}
}

func SortFileInfos(files []FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Less(files[j])
	})
}

func splitComponents(p string) []string {
	p = filepath.ToSlash(filepath.Clean(p))
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
