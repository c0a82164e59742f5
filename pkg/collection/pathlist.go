package collection

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// sketchSuffixes are the file name endings treated as a single sketch file
// rather than a path list.
var sketchSuffixes = []string{".sig.gz", ".sig.lz4", ".sig", ".json.gz", ".json"}

// RemoteScheme prefixes object storage locations.
const RemoteScheme = "s3://"

// IsRemote reports whether location refers to object storage.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, RemoteScheme)
}

// IsSketchFile reports whether path names a sketch file by its suffix.
func IsSketchFile(path string) bool {
	_, ok := sketchSuffix(path)

	return ok
}

// TrimSketchSuffix strips a known sketch file suffix from name.
func TrimSketchSuffix(name string) string {
	suffix, ok := sketchSuffix(name)
	if !ok {
		return name
	}

	return strings.TrimSuffix(name, suffix)
}

func sketchSuffix(name string) (string, bool) {
	for _, suffix := range sketchSuffixes {
		if strings.HasSuffix(name, suffix) {
			return suffix, true
		}
	}

	return "", false
}

// ReadPathList reads a list of sketch paths, one per line. Blank lines,
// surrounding whitespace and lines starting with '#' are ignored.
func ReadPathList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: path list %s: %w", ErrLoad, path, err)
	}
	defer f.Close()

	var paths []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		paths = append(paths, line)
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: path list %s: %w", ErrLoad, path, err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: path list %s is empty", ErrEmptyInput, path)
	}

	return paths, nil
}

// ResolvePaths expands arg into sketch paths: a sketch file (or remote
// object) is a one-entry list, anything else is read as a path list.
func ResolvePaths(arg string) ([]string, error) {
	if IsSketchFile(arg) || IsRemote(arg) {
		return []string{arg}, nil
	}

	return ReadPathList(arg)
}
