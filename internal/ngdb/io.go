package ngdb

import (
	"fmt"
	"os"

	"github.com/google/renameio"
	"github.com/nodegraph/nbuild/internal/ngerr"
	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// LoadFile loads path via mmap, copying the whole file into one buffer up
// front to avoid many tiny reads.
// currentPath is the path the caller is about to build against; if it
// differs from the database's recorded OriginalPath and
// continueAfterMove is false, LoadFile returns LoadErrorMoved.
func LoadFile(path, currentPath string, continueAfterMove bool) (*Database, LoadResult, error) {
	f, err := os.Stat(path)
	if err != nil || f.IsDir() {
		return nil, LoadMissingOrIncompatible, nil
	}

	r, err := mmap.Open(path)
	if err != nil {
		return nil, LoadMissingOrIncompatible, nil
	}
	defer r.Close()

	raw := make([]byte, r.Len())
	if _, err := r.ReadAt(raw, 0); err != nil {
		return nil, LoadError, xerrors.Errorf("ngdb: mmap read %s: %w", path, err)
	}

	db, err := Load(raw)
	if err != nil {
		if xerrors.Is(err, ngerr.ErrDBIncompatible) {
			return nil, LoadMissingOrIncompatible, nil
		}
		renameCorrupt(path)
		return nil, LoadError, err
	}

	if db.OriginalPath != "" && db.OriginalPath != currentPath {
		if !continueAfterMove {
			return db, LoadErrorMoved, xerrors.Errorf("ngdb: %s: %w", path, ngerr.ErrDBMoved)
		}
		// Treat as a clean build: caller rebuilds from description and
		// overwrites OriginalPath on next Save.
		return db, LoadOkNeedsReparse, nil
	}

	return db, LoadOK, nil
}

// renameCorrupt renames path to a numbered ".corrupt" backup, never
// clobbering a prior backup's triage value (see DESIGN.md's Open Question
// decision on numbered vs. overwritten corrupt backups).
func renameCorrupt(path string) {
	dest := path + ".corrupt"
	for i := 1; fileExists(dest); i++ {
		dest = fmt.Sprintf("%s.corrupt.%d", path, i)
	}
	_ = os.Rename(path, dest)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveFile atomically writes db to path via rename-into-place, so a reader
// never observes a partially-written database.
func SaveFile(path string, db *Database) error {
	raw, err := Save(db)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, raw, 0o644)
}
