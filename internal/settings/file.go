package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type fileDoc struct {
	UpdatedAt time.Time         `yaml:"updated_at"`
	Values    map[string]string `yaml:"values"`
}

// File keeps settings in a YAML document. Set stages changes in memory and
// Commit writes them out, matching nvram semantics.
type File struct {
	path string

	mu      sync.Mutex
	values  map[string]string
	pending bool
}

// OpenFile loads the store at path. A missing file is an empty store.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("settings_path is required for the file backend")
	}
	f := &File{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for k, v := range doc.Values {
		f.values[k] = v
	}
	return f, nil
}

// Get returns "" for unknown keys, like nvram get.
func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key], nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.pending = true
	return nil
}

func (f *File) Commit(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		if _, err := os.Stat(f.path); err == nil {
			return nil
		}
	}

	doc := fileDoc{UpdatedAt: time.Now().UTC(), Values: f.values}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	f.pending = false
	return nil
}
