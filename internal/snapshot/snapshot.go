// Package snapshot knows the on-disk layout of a backup snapshot
// directory and how to resolve which snapshot a run should act on.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"homelabctl/internal/archive"
)

// Fixed subdirectory and manifest names inside a snapshot.
const (
	VolumesDir     = "volumes"
	BindMountsDir  = "bind-mounts"
	ComposeDir     = "compose-files"
	ManifestsDir   = "manifests"
	CertsDir       = "certs"
	ImagesTar      = "images.tar"
	ContainersJSON = "containers.json"
	ContainersTSV  = "containers.tsv"
	RunningImages  = "running-images.txt"
)

// Resolve picks the snapshot directory to operate on: an explicit
// path wins, else the pointer file under root, else the
// lexicographically last directory under root (timestamp-named
// snapshots sort chronologically).
func Resolve(explicit, root, pointer string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("backup directory %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if pointer != "" {
		data, err := os.ReadFile(filepath.Join(root, pointer))
		if err == nil {
			p := strings.TrimSpace(string(data))
			if p != "" {
				if _, err := os.Stat(p); err == nil {
					return p, nil
				}
			}
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("could not resolve a backup directory under %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		return "", fmt.Errorf("could not resolve a backup directory: no snapshots under %s", root)
	}
	sort.Strings(dirs)
	return filepath.Join(root, dirs[len(dirs)-1]), nil
}

// ListArchives returns the archive filenames present in dir. A
// missing directory yields an empty set, not an error.
func ListArchives(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	out := map[string]bool{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), archive.Suffix) {
			out[e.Name()] = true
		}
	}
	return out, nil
}

// SortedNames flattens an archive set for reporting.
func SortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
