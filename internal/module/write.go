package module

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

// writeFile creates parent directories and writes data, syncing before the handle is closed.
func writeFile(path, data string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fsError(err, "failed to create output directory", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fsError(err, "failed to create output file", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fsError(cerr, "failed to close output file", path)
		}
	}()

	if _, err := f.WriteString(data); err != nil {
		return fsError(err, "failed to write output file", path)
	}
	if err := f.Sync(); err != nil {
		return fsError(err, "failed to sync output file", path)
	}
	return nil
}

func fsError(err error, msg, path string) error {
	return errors.WrapError(err, errors.CategoryFileSystem, msg).WithContext("path", path).Build()
}
