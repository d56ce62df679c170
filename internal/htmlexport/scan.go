package htmlexport

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var knownSubfolders = []string{"chatgpt", "grok", "perplexity", "anthropic"}

// ScanDir lists the HTML files under dir. When any known vendor
// subfolder exists only subfolders are scanned; otherwise the
// directory root is scanned flat. A missing dir is an empty result,
// not an error.
func ScanDir(dir string) ([]File, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []File
	hasSubfolders := false
	for _, sub := range knownSubfolders {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		if err != nil {
			continue
		}
		hasSubfolders = true
		for _, e := range entries {
			if f, ok := scanEntry(dir, sub, e); ok {
				files = append(files, f)
			}
		}
	}

	if !hasSubfolders {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("scan html dir: %w", err)
		}
		for _, e := range entries {
			if f, ok := scanEntry(dir, "", e); ok {
				files = append(files, f)
			}
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Subfolder != files[j].Subfolder {
			return files[i].Subfolder < files[j].Subfolder
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func scanEntry(dir, sub string, e os.DirEntry) (File, bool) {
	name := e.Name()
	if e.IsDir() || !strings.HasSuffix(name, ".html") || strings.HasPrefix(name, ".") {
		return File{}, false
	}
	rel := name
	if sub != "" {
		rel = sub + "/" + name
	}
	f := File{Name: name, Subfolder: sub, RelPath: rel}
	if info, err := e.Info(); err == nil {
		f.ModTime = info.ModTime()
	}
	return f, true
}

// Path returns the absolute location of f under dir.
func (f File) Path(dir string) string {
	if f.Subfolder != "" {
		return filepath.Join(dir, f.Subfolder, f.Name)
	}
	return filepath.Join(dir, f.Name)
}
