package jsonstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"satbank/internal/domain"
	"satbank/internal/logger"
	"satbank/internal/util"

	"go.uber.org/zap"
)

// Index is an ordered list of the UIDs present in a store file, persisted
// separately so a large collection can be paged through in fixed-size
// chunks without re-parsing the whole document. It records membership and
// order only, never positions: file rewrites invalidate any byte or line
// offset, so the index is rebuilt wholesale after every mutation rather
// than patched incrementally.
type Index []string

// IndexPath derives the index file location for a store path:
// questions.json -> questions_index.json, in the same directory.
func IndexPath(storePath string) string {
	dir := filepath.Dir(storePath)
	base := filepath.Base(storePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+"_index"+ext)
}

// BuildIndex enumerates the UIDs in the store's current contents, in file
// order, via the tolerant streaming reader.
func (s *Store) BuildIndex() (Index, error) {
	sc, err := s.Scan()
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			return Index{}, nil
		}
		return nil, err
	}
	defer sc.Close()

	idx := Index{}
	for sc.Next() {
		idx = append(idx, sc.Question().UID)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// LoadIndex reads a previously persisted index. The index is a cache, not
// a source of truth: a missing or unparsable index file yields an empty
// index and never an error, and callers fall back to BuildIndex.
func LoadIndex(indexPath string) Index {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Get().Warn("failed to read index file",
				zap.String("path", indexPath), zap.Error(err))
		}
		return Index{}
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		logger.Get().Warn("discarding unparsable index file",
			zap.String("path", indexPath), zap.Error(err))
		return Index{}
	}
	return idx
}

// SaveIndex atomically persists the UID list, with the same replace
// discipline as the store file itself.
func SaveIndex(idx Index, indexPath string) error {
	if idx == nil {
		idx = Index{}
	}
	payload, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return domain.NewInternalError("failed to encode index", err)
	}
	payload = append(payload, '\n')
	if err := util.WriteFileAtomic(indexPath, payload, 0o644); err != nil {
		return domain.NewWriteFailedError(indexPath, err)
	}
	return nil
}

// Contains reports whether uid is present in the index.
func (idx Index) Contains(uid string) bool {
	for _, u := range idx {
		if u == uid {
			return true
		}
	}
	return false
}

// Chunk returns the UIDs for one fixed-size page, clamped to the index
// bounds. Size <= 0 returns the whole remainder from offset.
func (idx Index) Chunk(offset, size int) Index {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(idx) {
		return Index{}
	}
	end := len(idx)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	return idx[offset:end]
}
