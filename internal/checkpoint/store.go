package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vibesafe/internal/vserrors"
)

const (
	implFileName  = "impl.go"
	metaFileName  = "meta.toml"
	indexFileName = "index.toml"
	lockFileName  = "index.toml.lock"
)

// Store is the on-disk checkpoint layout rooted at the directory that
// holds index.toml, with the checkpoints/ tree beneath it (§4.6).
type Store struct {
	root        string // parent of "checkpoints/" and "index.toml"
	lockTimeout time.Duration
}

// NewStore constructs a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root, lockTimeout: 5 * time.Second}
}

func (s *Store) checkpointsDir() string { return filepath.Join(s.root, "checkpoints") }
func (s *Store) indexPath() string      { return filepath.Join(s.root, indexFileName) }
func (s *Store) lockPath() string       { return filepath.Join(s.root, lockFileName) }

func (s *Store) unitDir(unitID string) string {
	return filepath.Join(s.checkpointsDir(), filepath.FromSlash(unitID))
}

func (s *Store) checkpointDir(unitID, hChk string) string {
	return filepath.Join(s.unitDir(unitID), hChk)
}

// CheckpointDir returns hChk's on-disk directory for unitID, so callers
// like the verification harness's lint and type-check gates can operate
// directly on an already-written checkpoint's files.
func (s *Store) CheckpointDir(unitID, hChk string) string {
	return s.checkpointDir(unitID, hChk)
}

// Write persists impl and meta under hChk, idempotently: if the
// destination directory already exists, its impl.go bytes must equal impl
// (Invariant 3 — a checkpoint hash never repoints to different bytes) or
// Write fails without touching anything. Write does not recompute hChk
// from the bytes it is given.
func (s *Store) Write(unitID, hChk string, impl []byte, meta Meta) error {
	dest := s.checkpointDir(unitID, hChk)

	if existing, err := os.ReadFile(filepath.Join(dest, implFileName)); err == nil {
		if string(existing) != string(impl) {
			return vserrors.NewStorageError(unitID, "HashMismatchOnWrite",
				fmt.Sprintf("checkpoint %s already holds different bytes", hChk))
		}
		return nil
	}

	if err := os.MkdirAll(s.unitDir(unitID), 0o755); err != nil {
		return vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("mkdir unit dir: %v", err))
	}
	tmp, err := os.MkdirTemp(s.unitDir(unitID), ".tmp-*")
	if err != nil {
		return vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("mkdir temp: %v", err))
	}
	defer os.RemoveAll(tmp)

	if err := os.WriteFile(filepath.Join(tmp, implFileName), impl, 0o644); err != nil {
		return vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("write impl.go: %v", err))
	}
	metaBytes, err := toml.Marshal(meta)
	if err != nil {
		return vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("marshal meta: %v", err))
	}
	if err := os.WriteFile(filepath.Join(tmp, metaFileName), metaBytes, 0o644); err != nil {
		return vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("write meta.toml: %v", err))
	}

	if err := os.Rename(tmp, dest); err != nil {
		if os.IsExist(err) {
			return nil // another writer won the race with identical content
		}
		return vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("rename into place: %v", err))
	}
	return nil
}

// Read loads a specific checkpoint's implementation bytes and metadata.
func (s *Store) Read(unitID, hChk string) ([]byte, Meta, error) {
	dir := s.checkpointDir(unitID, hChk)
	impl, err := os.ReadFile(filepath.Join(dir, implFileName))
	if err != nil {
		return nil, Meta{}, vserrors.NewCheckpointMissing(unitID)
	}
	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, Meta{}, vserrors.NewCheckpointMissing(unitID)
	}
	var meta Meta
	if err := toml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, Meta{}, vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("parse meta.toml: %v", err))
	}
	return impl, meta, nil
}

// ListCheckpoints returns every checkpoint hash on disk for a unit,
// sorted for deterministic output.
func (s *Store) ListCheckpoints(unitID string) ([]string, error) {
	entries, err := os.ReadDir(s.unitDir(unitID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: list %s: %w", unitID, err)
	}
	var hashes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".tmp-") {
			hashes = append(hashes, e.Name())
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Active returns the currently active checkpoint hash for unitID, or ""
// if none has been activated.
func (s *Store) Active(unitID string) (string, error) {
	idx, err := s.readIndex()
	if err != nil {
		return "", err
	}
	if e := idx.find(unitID); e != nil {
		return e.ActiveHash, nil
	}
	return "", nil
}

// Activate makes hChk the active checkpoint for unitID, serialized against
// concurrent Activate calls via a lockfile on index.toml (§4.6, §8 S5/S6).
func (s *Store) Activate(ctx context.Context, unitID, hChk string, now time.Time) error {
	if _, _, err := s.Read(unitID, hChk); err != nil {
		return err
	}

	lock, err := acquireLock(ctx, s.lockPath(), s.lockTimeout)
	if err != nil {
		return err
	}
	defer lock.release()

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	idx.set(unitID, hChk, now.UTC().Format(time.RFC3339))
	return s.writeIndex(idx)
}

func (s *Store) readIndex() (*Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{}, nil
		}
		return nil, fmt.Errorf("checkpoint: read index: %w", err)
	}
	var idx Index
	if err := toml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("checkpoint: parse index: %w", err)
	}
	return &idx, nil
}

func (s *Store) writeIndex(idx *Index) error {
	data, err := toml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal index: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("checkpoint: mkdir root: %w", err)
	}
	tmp, err := os.CreateTemp(s.root, ".index-*.toml")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp index: %w", err)
	}
	return os.Rename(tmp.Name(), s.indexPath())
}
