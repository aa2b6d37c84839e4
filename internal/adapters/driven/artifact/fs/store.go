// Package fs provides a filesystem-backed stage artifact store.
//
// Layout: <root>/<collection>/<stage>/<docID> holds the payload and
// <root>/<collection>/<stage>/<docID>.done.json the completion marker.
// Payloads are written to a temp file and renamed into place; the marker
// is written (also atomically) only afterwards, so a crash mid-write
// never leaves an artifact that a later stage would misread as complete.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

// markerSuffix is appended to the payload filename to form the
// completion marker filename.
const markerSuffix = ".done.json"

// Store is a filesystem artifact store rooted at a data directory.
// Concurrent writes to distinct document keys are safe; the operating
// system's rename atomicity protects each key.
type Store struct {
	root string
}

// NewStore creates an artifact store rooted at dir.
// If dir is empty, defaults to ~/.corpus/artifacts.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".corpus", "artifacts")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}

	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Put atomically writes the payload, then the completion marker.
func (s *Store) Put(_ context.Context, collection string, stage domain.Stage, docID string, payload []byte, meta driven.ArtifactMeta) error {
	dir := s.stageDir(collection, stage)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating stage directory: %w", err)
	}

	if meta.CompletedAt.IsZero() {
		meta.CompletedAt = time.Now().UTC()
	}

	payloadPath := filepath.Join(dir, docID)
	if err := writeAtomic(payloadPath, payload); err != nil {
		return fmt.Errorf("writing artifact %s/%s/%s: %w", collection, stage, docID, err)
	}

	markerData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding completion marker: %w", err)
	}
	if err := writeAtomic(payloadPath+markerSuffix, markerData); err != nil {
		return fmt.Errorf("writing completion marker %s/%s/%s: %w", collection, stage, docID, err)
	}

	return nil
}

// Get returns the payload and marker for a completed artifact.
func (s *Store) Get(ctx context.Context, collection string, stage domain.Stage, docID string) ([]byte, driven.ArtifactMeta, error) {
	meta, err := s.Meta(ctx, collection, stage, docID)
	if err != nil {
		return nil, driven.ArtifactMeta{}, err
	}

	payload, err := os.ReadFile(filepath.Join(s.stageDir(collection, stage), docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, driven.ArtifactMeta{}, fmt.Errorf("%w: %s/%s/%s", domain.ErrMissingArtifact, collection, stage, docID)
		}
		return nil, driven.ArtifactMeta{}, fmt.Errorf("reading artifact: %w", err)
	}

	return payload, meta, nil
}

// Meta returns the completion marker. An artifact without a marker is
// treated as missing, regardless of any payload on disk.
func (s *Store) Meta(_ context.Context, collection string, stage domain.Stage, docID string) (driven.ArtifactMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.stageDir(collection, stage), docID+markerSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return driven.ArtifactMeta{}, fmt.Errorf("%w: %s/%s/%s", domain.ErrMissingArtifact, collection, stage, docID)
		}
		return driven.ArtifactMeta{}, fmt.Errorf("reading completion marker: %w", err)
	}

	var meta driven.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return driven.ArtifactMeta{}, fmt.Errorf("decoding completion marker: %w", err)
	}
	return meta, nil
}

// Completed lists document IDs with completion markers, sorted.
func (s *Store) Completed(_ context.Context, collection string, stage domain.Stage) ([]string, error) {
	entries, err := os.ReadDir(s.stageDir(collection, stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing stage directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, markerSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, markerSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the marker first, then the payload, so a failure
// part-way leaves the artifact incomplete rather than orphaned-complete.
func (s *Store) Delete(_ context.Context, collection string, stage domain.Stage, docID string) error {
	payloadPath := filepath.Join(s.stageDir(collection, stage), docID)
	if err := os.Remove(payloadPath + markerSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing completion marker: %w", err)
	}
	if err := os.Remove(payloadPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing artifact: %w", err)
	}
	return nil
}

func (s *Store) stageDir(collection string, stage domain.Stage) string {
	return filepath.Join(s.root, collection, string(stage))
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
