// Package manifest persists the module graph so production servers can start without
// re-reading or recompiling sources.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

// ErrNotFound is wrapped by Load when no manifest exists at the path.
var ErrNotFound = stderrors.New("manifest not found")

// Entry is one compiled module.
type Entry struct {
	// Path is the absolute location of the compiled module on disk.
	Path   string `json:"path"`
	Module string `json:"module"`
	HTML   string `json:"html,omitempty"`
}

// Manifest maps module keys to their compiled entry.
type Manifest map[string]Entry

// Marshal encodes the manifest as indented JSON. Keys are sorted, so equal manifests
// always encode to equal bytes.
func (m Manifest) Marshal() ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Hash returns the SHA-256 of the encoded manifest.
func (m Manifest) Hash() (string, error) {
	data, err := m.Marshal()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// Save writes the manifest to path through a temporary file and rename.
func (m Manifest) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return errors.WrapError(err, errors.CategoryManifest, "failed to encode manifest").Build()
	}
	if err := writeAtomic(path, data); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write manifest").
			WithContext("path", path).
			Build()
	}
	return nil
}

// Load reads the manifest at path. A missing or malformed manifest is a manifest error.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		cause := err
		if os.IsNotExist(err) {
			cause = fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, errors.WrapError(cause, errors.CategoryManifest, "cannot load manifest").
			Fatal().
			WithContext("path", path).
			Build()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapError(err, errors.CategoryManifest, "malformed manifest").
			Fatal().
			WithContext("path", path).
			Build()
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
