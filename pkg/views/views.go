// Package views persists filter specs as flat key/value records, one per
// module/view, so list configurations survive restarts.
package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
)

// Views stores saved filter specs on disk.
type Views struct {
	d        *diskv.Diskv
	basePath string
}

// Open creates a view store rooted at basePath.
func Open(basePath string) (*Views, error) {
	if basePath == "" {
		return nil, errors.New("views: base path required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("views: ensure base path: %w", err)
	}
	return &Views{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024, // 1MB
		}),
		basePath: basePath,
	}, nil
}

// Save persists the spec under the given view name.
func (v *Views) Save(m entry.Module, name string, spec filter.Spec) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("views: view name required")
	}
	data, err := json.Marshal(spec.Encode())
	if err != nil {
		return fmt.Errorf("views: encode spec: %w", err)
	}
	if err := v.d.Write(toKey(m, name), data); err != nil {
		return fmt.Errorf("views: write spec: %w", err)
	}
	return nil
}

// Load returns the saved spec for a view. A missing or malformed record
// falls back silently to the module's default spec; decoding individually
// unknown values is the filter package's concern.
func (v *Views) Load(m entry.Module, name string) filter.Spec {
	data, err := v.d.Read(toKey(m, name))
	if err != nil {
		return filter.New(m)
	}
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		fmt.Fprintf(os.Stderr, "views: malformed view %s/%s, using defaults: %v\n", m, name, err)
		return filter.New(m)
	}
	return filter.Decode(m, kv)
}

// List returns the saved view names for a module, sorted.
func (v *Views) List(m entry.Module) []string {
	prefix := string(m) + "-"
	var names []string
	for key := range v.d.Keys(nil) {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(names)
	return names
}

// Delete removes a saved view.
func (v *Views) Delete(m entry.Module, name string) error {
	return v.d.Erase(toKey(m, name))
}

// toKey makes `module-name`.
func toKey(m entry.Module, name string) string {
	return fmt.Sprintf("%s-%s", m, name)
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 1 {
		return &diskv.PathKey{Path: []string{}, FileName: parts[0]}
	}
	return &diskv.PathKey{Path: parts[:1], FileName: parts[1]}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}
