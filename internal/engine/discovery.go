package engine

// discovery.go - input resolution and SQL file discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover resolves input and lists the SQL files to parse.
//
// A file input is returned as is. A directory is walked recursively and every
// regular file whose base name matches glob is returned, sorted by path.
// Patterns containing a separator are matched against the path relative to
// the directory instead. When input does not exist, path segments are matched
// case-insensitively before giving up with ErrNoInput.
func Discover(input, glob string) ([]string, error) {
	if glob == "" {
		glob = DefaultGlob
	}
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", glob, err)
	}

	resolved, ok := resolveCaseInsensitive(input)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoInput, input)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoInput, input)
	}
	if !info.IsDir() {
		return []string{resolved}, nil
	}

	matchPath := strings.ContainsRune(glob, '/')

	var files []string
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if matchPath {
			rel, err := filepath.Rel(resolved, path)
			if err != nil {
				return err
			}
			name = filepath.ToSlash(rel)
		}

		if ok, _ := filepath.Match(glob, name); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", resolved, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s matching %q", ErrNoFiles, resolved, glob)
	}

	sort.Strings(files)
	return files, nil
}

// resolveCaseInsensitive returns path itself when it exists, otherwise the
// first existing path whose segments equal path's ignoring case.
func resolveCaseInsensitive(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if _, err := os.Stat(path); err == nil {
		return path, true
	}

	clean := filepath.Clean(path)
	current := "."
	rest := clean
	if vol := filepath.VolumeName(clean); filepath.IsAbs(clean) {
		current = vol + string(filepath.Separator)
		rest = strings.TrimPrefix(clean[len(vol):], string(filepath.Separator))
	}

	for _, segment := range strings.Split(rest, string(filepath.Separator)) {
		if segment == "" || segment == "." {
			continue
		}
		if segment == ".." {
			current = filepath.Join(current, segment)
			continue
		}

		entries, err := os.ReadDir(current)
		if err != nil {
			return "", false
		}

		match := ""
		for _, entry := range entries {
			if strings.EqualFold(entry.Name(), segment) {
				match = entry.Name()
				break
			}
		}
		if match == "" {
			return "", false
		}
		current = filepath.Join(current, match)
	}

	return current, true
}
