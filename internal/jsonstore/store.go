package jsonstore

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"satbank/internal/domain"
	"satbank/internal/logger"
	"satbank/internal/util"

	"go.uber.org/zap"
)

// Store persists questions as a single pretty-printed JSON array on disk.
// All mutations funnel through UpsertAndDelete, which rewrites the document
// through an atomic replace so readers never observe a partial file.
// The store has no concurrent-writer protection; callers must serialize
// writes to the same path.
type Store struct {
	path string
}

// New creates a Store bound to the given file path. The file does not have
// to exist yet; a missing file reads as an empty store for mutations.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// LoadAll parses the full document and returns every question in file order.
// A missing file is NOT_FOUND (append-style callers treat it as an empty
// store), a non-array root is INVALID_FORMAT, undecodable bytes are
// PARSE_ERROR, and a mis-shaped element is MALFORMED_RECORD: whole-file
// loads are strict, unlike Scan.
func (s *Store) LoadAll() ([]*domain.Question, error) {
	sc, err := s.scan(true)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	var questions []*domain.Question
	for sc.Next() {
		questions = append(questions, sc.Question())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

// Scan returns a tolerant streaming reader over the document. Elements that
// are valid JSON but do not decode into a question are logged and skipped
// rather than aborting the stream; bytes that are not valid JSON at all
// still abort with PARSE_ERROR. Re-invoking Scan re-reads from the start.
func (s *Store) Scan() (*Scanner, error) {
	return s.scan(false)
}

func (s *Store) scan(strict bool) (*Scanner, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewNotFoundError("store file not found: " + s.path)
		}
		return nil, domain.NewInternalError("failed to open store file: "+s.path, err)
	}

	dec := json.NewDecoder(bufio.NewReader(f))
	tok, err := dec.Token()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, domain.NewParseError(s.path, io.ErrUnexpectedEOF)
		}
		return nil, domain.NewParseError(s.path, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		f.Close()
		return nil, domain.NewInvalidFormatError(s.path)
	}

	return &Scanner{path: s.path, f: f, dec: dec, strict: strict}, nil
}

// UpsertAndDelete is the single mutating primitive. Existing records whose
// UID appears in toDelete are omitted; records matching a UID in toUpdate
// are replaced in place; toUpdate records with new UIDs are appended in the
// order given. Everything else passes through unchanged. The new document
// is written to a temp file beside the target and renamed over it, so a
// concurrent reader sees either the old or the new content, never a
// partial one.
//
// A corrupt existing file fails loudly with PARSE_ERROR instead of being
// treated as an empty store; silently discarding a damaged file would turn
// one bad byte into total data loss.
func (s *Store) UpsertAndDelete(toUpdate []*domain.Question, toDelete []string) error {
	existing, err := s.LoadAll()
	if err != nil {
		if !domain.IsCode(err, domain.ErrNotFound) {
			return err
		}
		existing = nil
	}

	deletes := make(map[string]struct{}, len(toDelete))
	for _, uid := range toDelete {
		deletes[uid] = struct{}{}
	}
	updates := make(map[string]*domain.Question, len(toUpdate))
	for _, q := range toUpdate {
		updates[q.UID] = q
	}

	result := make([]*domain.Question, 0, len(existing)+len(toUpdate))
	seen := make(map[string]struct{}, len(existing))
	for _, q := range existing {
		if _, ok := deletes[q.UID]; ok {
			continue
		}
		if _, dup := seen[q.UID]; dup {
			logger.Get().Warn("dropping duplicate uid while rewriting store",
				zap.String("path", s.path), zap.String("uid", q.UID))
			continue
		}
		seen[q.UID] = struct{}{}
		if replacement, ok := updates[q.UID]; ok {
			result = append(result, replacement)
		} else {
			result = append(result, q)
		}
	}
	for _, q := range toUpdate {
		if _, ok := seen[q.UID]; ok {
			continue
		}
		if _, ok := deletes[q.UID]; ok {
			continue
		}
		seen[q.UID] = struct{}{}
		result = append(result, q)
	}

	return s.write(result)
}

// Append adds a single question to the store, creating the file if absent.
func (s *Store) Append(q *domain.Question) error {
	return s.UpsertAndDelete([]*domain.Question{q}, nil)
}

func (s *Store) write(questions []*domain.Question) error {
	// Keep the document an array even when empty.
	if questions == nil {
		questions = []*domain.Question{}
	}
	payload, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return domain.NewInternalError("failed to encode store document", err)
	}
	payload = append(payload, '\n')
	if err := util.WriteFileAtomic(s.path, payload, 0o644); err != nil {
		return domain.NewWriteFailedError(s.path, err)
	}
	return nil
}

// Scanner iterates over a store document one element at a time without
// holding the whole parsed document in memory.
type Scanner struct {
	path    string
	f       *os.File
	dec     *json.Decoder
	strict  bool
	cur     *domain.Question
	err     error
	skipped int
	closed  bool
}

// Next advances to the next well-formed question. It returns false at the
// end of the document or on a fatal error; check Err afterwards.
func (sc *Scanner) Next() bool {
	if sc.err != nil || sc.closed {
		return false
	}
	for sc.dec.More() {
		var raw json.RawMessage
		if err := sc.dec.Decode(&raw); err != nil {
			sc.err = domain.NewParseError(sc.path, err)
			return false
		}
		q, err := domain.FromExternal(raw)
		if err != nil {
			if sc.strict {
				sc.err = err
				return false
			}
			sc.skipped++
			logger.Get().Warn("skipping malformed element in store file",
				zap.String("path", sc.path), zap.Error(err))
			continue
		}
		sc.cur = q
		return true
	}
	// Consume the closing bracket so trailing garbage is not silently
	// accepted.
	if _, err := sc.dec.Token(); err != nil {
		sc.err = domain.NewParseError(sc.path, err)
	}
	sc.Close()
	return false
}

// Question returns the record produced by the last successful Next.
func (sc *Scanner) Question() *domain.Question {
	return sc.cur
}

// Err returns the first fatal error encountered, if any.
func (sc *Scanner) Err() error {
	return sc.err
}

// Skipped returns how many malformed elements were skipped so far.
func (sc *Scanner) Skipped() int {
	return sc.skipped
}

// Close releases the underlying file. Safe to call more than once.
func (sc *Scanner) Close() error {
	if sc.closed {
		return nil
	}
	sc.closed = true
	return sc.f.Close()
}
