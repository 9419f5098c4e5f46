package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Disk persists a timelock document as a single JSON file. Replace writes a
// temp file in the same directory, syncs it, and renames it over the target
// so every commit is all or nothing.
type Disk struct {
	path string
}

// NewDisk constructs a Disk store for the specified file path.
func NewDisk(path string) *Disk {
	return &Disk{path: path}
}

// Path returns the file path backing this store.
func (d *Disk) Path() string {
	return d.path
}

// Exists reports whether a document is present on disk.
func (d *Disk) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Load reads and structurally validates the document from disk.
func (d *Disk) Load() (Document, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return Document{}, fmt.Errorf("reading timelock file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decoding timelock file: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return Document{}, err
	}

	return doc, nil
}

// Replace atomically replaces the document on disk.
func (d *Disk) Replace(doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding timelock file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".timelock-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	// Leave no temp file behind on any failure path.
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replacing timelock file: %w", err)
	}

	return nil
}
