package script

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const (
	manifestFile = "Forc.toml"
	sourceFile   = "main.sw"
	outputFile   = "predicate.bin"
)

// Project is a materialized compiler project.
type Project struct {
	Name       string
	Dir        string
	OutputFile string
}

// Workspace lays out one project directory per wallet id under Root.
type Workspace struct {
	Root   string
	engine *Engine
}

// NewWorkspace returns a workspace rooted at root.
func NewWorkspace(root string, engine *Engine) *Workspace {
	return &Workspace{Root: root, engine: engine}
}

// Dir returns the project directory for a wallet id.
func (w *Workspace) Dir(id types.WalletID) string {
	return filepath.Join(w.Root, id.String())
}

// Materialize writes the descriptor and source for id. Each file is
// written to a temporary name and renamed into place, so a concurrent
// reader never observes a partial file. Failures carry ErrCompile: the
// project cannot be built.
func (w *Workspace) Materialize(id types.WalletID, source string) (Project, error) {
	dir := w.Dir(id)
	name := "wallet_" + id.String()[:16]
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o700); err != nil {
		return Project{}, errors.WithRoot(errors.ErrCompile, err, "create project dir")
	}
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o700); err != nil {
		return Project{}, errors.WithRoot(errors.ErrCompile, err, "create output dir")
	}
	if err := writeAtomic(filepath.Join(dir, manifestFile), []byte(w.engine.Manifest(name))); err != nil {
		return Project{}, errors.WithRoot(errors.ErrCompile, err, "write manifest")
	}
	if err := writeAtomic(filepath.Join(dir, "src", sourceFile), []byte(source)); err != nil {
		return Project{}, errors.WithRoot(errors.ErrCompile, err, "write source")
	}
	return Project{
		Name:       name,
		Dir:        dir,
		OutputFile: filepath.Join(dir, "out", outputFile),
	}, nil
}

// Remove deletes the project directory for id.
func (w *Workspace) Remove(id types.WalletID) error {
	if err := os.RemoveAll(w.Dir(id)); err != nil {
		return errors.Wrap(err, "remove project")
	}
	return nil
}

// Prune deletes project directories not modified within olderThan and
// returns how many were removed.
func (w *Workspace) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(w.Root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read workspace")
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.Root, e.Name())); err != nil {
			return removed, errors.Wrapf(err, "prune %s", e.Name())
		}
		removed++
	}
	return removed, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "close %s", filepath.Base(path))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "rename %s", filepath.Base(path))
	}
	return nil
}
