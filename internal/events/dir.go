package events

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDirOptions controls LoadDir behavior.
type LoadDirOptions struct {
	// KeepDuplicates retains every parsed file even when a MessageId
	// repeats. Default is first-seen-wins.
	KeepDuplicates bool

	// StrictParsing aborts on the first malformed file instead of
	// skipping it.
	StrictParsing bool
}

// LoadDir walks every *.json file below the given directories, parses
// each as a Gridworks event, dedupes on MessageId, and returns the events
// sorted by creation time. Non-event messages are skipped silently;
// malformed files are skipped unless StrictParsing is set.
func LoadDir(dirs []string, opts LoadDirOptions) ([]*AnyEvent, error) {
	var paths []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".json") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(paths))
	loaded := make([]*AnyEvent, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if opts.StrictParsing {
				return nil, err
			}
			continue
		}
		event, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrNotAnEvent) {
				continue
			}
			if opts.StrictParsing {
				return nil, err
			}
			continue
		}
		if !opts.KeepDuplicates {
			if _, dup := seen[event.MessageID]; dup {
				continue
			}
			seen[event.MessageID] = struct{}{}
		}
		loaded = append(loaded, event)
	}

	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].TimeCreatedMs < loaded[j].TimeCreatedMs
	})
	return loaded, nil
}
