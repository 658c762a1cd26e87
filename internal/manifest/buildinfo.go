package manifest

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	ggit "github.com/go-git/go-git/v5"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

// BuildInfo records one completed full build.
type BuildInfo struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Mode         string    `json:"mode"`
	Revision     string    `json:"revision,omitempty"`
	ConfigHash   string    `json:"config_hash"`
	Plugins      []string  `json:"plugins"`
	Modules      int       `json:"modules"`
	ManifestHash string    `json:"manifest_hash"`
	Duration     int64     `json:"duration_ms"`
}

// NewBuildInfo starts a record with a fresh ID.
func NewBuildInfo(mode string, now time.Time) *BuildInfo {
	return &BuildInfo{ID: uuid.NewString(), Timestamp: now.UTC(), Mode: mode}
}

// ToJSON serializes the build info to JSON.
func (b *BuildInfo) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal build info: %w", err)
	}
	return data, nil
}

// Save writes the build info to path.
func (b *BuildInfo) Save(path string) error {
	data, err := b.ToJSON()
	if err != nil {
		return err
	}
	if err := writeAtomic(path, append(data, '\n')); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write build info").
			WithContext("path", path).
			Build()
	}
	return nil
}

// LoadBuildInfo reads a build record.
func LoadBuildInfo(path string) (*BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b BuildInfo
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal build info: %w", err)
	}
	return &b, nil
}

// DetectRevision returns the HEAD commit of the git repository containing dir, or "" when
// dir is not inside a repository or HEAD is unborn.
func DetectRevision(dir string) (string, error) {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if stderrors.Is(err, ggit.ErrRepositoryNotExists) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", nil //nolint:nilerr // unborn HEAD has no revision
	}
	return ref.Hash().String(), nil
}
