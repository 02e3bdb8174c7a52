package hive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape reports a sync_data/fetch_data request whose resolved path
// falls outside the data root (spec.md §4.5, §7).
type ErrPathEscape struct {
	Requested string
}

func (e ErrPathEscape) Error() string {
	return fmt.Sprintf("path %q escapes the data root", e.Requested)
}

// JailedPath resolves rel against root and guarantees the result stays
// within root, rejecting absolute paths, "..", and any other traversal
// attempt once the path is cleaned (spec.md §8 test scenario 6: "fetch_data
// returns PathEscape for any path outside the data root, including
// %2e%2e-encoded and symlink-based escapes").
func JailedPath(root, rel string) (string, error) {
	if rel == "" {
		return "", ErrPathEscape{Requested: rel}
	}
	if filepath.IsAbs(rel) {
		return "", ErrPathEscape{Requested: rel}
	}

	cleanRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("resolve data root: %w", err)
	}

	joined := filepath.Join(cleanRoot, rel)
	cleanJoined := filepath.Clean(joined)

	rootWithSep := cleanRoot + string(filepath.Separator)
	if cleanJoined != cleanRoot && !strings.HasPrefix(cleanJoined, rootWithSep) {
		return "", ErrPathEscape{Requested: rel}
	}

	// Guard against a symlink planted inside root that points back out,
	// checked on whatever prefix of the path actually exists.
	if resolvedRoot, err := filepath.EvalSymlinks(cleanRoot); err == nil {
		probe := cleanJoined
		for {
			if target, err := filepath.EvalSymlinks(probe); err == nil {
				resolvedRootSep := resolvedRoot + string(filepath.Separator)
				if target != resolvedRoot && !strings.HasPrefix(target, resolvedRootSep) {
					return "", ErrPathEscape{Requested: rel}
				}
				break
			} else if os.IsNotExist(err) {
				parent := filepath.Dir(probe)
				if parent == probe {
					break
				}
				probe = parent
				continue
			} else {
				break
			}
		}
	}

	return cleanJoined, nil
}
