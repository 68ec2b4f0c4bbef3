package topology

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flexmocap/rigcore/internal/rigerr"
)

// Load reads a template, choosing the format from the file extension:
// ".csv" is tabular, anything else is the key-value format.
func Load(path string) (*Topology, error) {
	if isCSV(path) {
		return LoadCSV(path)
	}
	return LoadINI(path)
}

// Save writes t in the format implied by the extension of path.
func Save(path string, t *Topology) error {
	if isCSV(path) {
		return SaveCSV(path, t)
	}
	return SaveINI(path, t)
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func openTemplate(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %w", rigerr.ErrNotFound, err)
		}
		return nil, rigerr.ReadFailed(path, err)
	}
	return f, nil
}

// writeAtomic writes to a temporary sibling of path and renames it into
// place, so a failed write leaves no partial file behind.
func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return rigerr.WriteFailed(path, err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return rigerr.WriteFailed(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return rigerr.WriteFailed(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return rigerr.WriteFailed(path, err)
	}
	return nil
}

func malformed(joint, format string, args ...any) error {
	return rigerr.Invalid(rigerr.ErrMalformed, joint, fmt.Sprintf(format, args...))
}
