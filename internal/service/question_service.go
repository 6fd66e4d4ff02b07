package service

import (
	"fmt"
	"sort"
	"strings"

	"satbank/internal/database"
	"satbank/internal/domain"
	"satbank/internal/jsonstore"
	"satbank/internal/logger"
	"satbank/internal/repository"
	"satbank/internal/util"

	"go.uber.org/zap"
)

// QuestionService is the store facade: one operation set regardless of
// which backend underlies the collection. The backend is fixed at open
// time; a service instance never mixes encodings.
//
// Operations are synchronous and may block on I/O; callers that need to
// stay responsive submit them through a worker pool. The service applies
// shared policy (validation before any I/O, skip-unchanged saves) and
// dispatches the rest to the backend.
type QuestionService struct {
	backend domain.Backend

	// json backend
	store     *jsonstore.Store
	indexPath string

	// sqlite backend
	adapter *repository.QuestionDatabaseAdapter
}

var _ domain.QuestionStore = (*QuestionService)(nil)

// Open creates a QuestionService over the store at path using the given
// backend encoding.
func Open(backend domain.Backend, path string) (*QuestionService, error) {
	switch backend {
	case domain.BackendJSON:
		return &QuestionService{
			backend:   backend,
			store:     jsonstore.New(path),
			indexPath: jsonstore.IndexPath(path),
		}, nil
	case domain.BackendSQLite:
		db, err := database.NewSQLXSQLiteDB(path)
		if err != nil {
			return nil, domain.NewInternalError("failed to open SQLite store", err)
		}
		if err := database.RunMigrations(db); err != nil {
			db.Close()
			return nil, domain.NewInternalError("failed to prepare SQLite schema", err)
		}
		return &QuestionService{
			backend: backend,
			adapter: repository.NewQuestionDatabaseAdapter(db),
		}, nil
	default:
		return nil, domain.NewValidationFailedError(fmt.Sprintf("unknown backend: %s", backend))
	}
}

// Backend returns the encoding this service was opened with.
func (s *QuestionService) Backend() domain.Backend {
	return s.backend
}

// Load returns questions matching the filter, most recently created first.
func (s *QuestionService) Load(filter domain.Filter) ([]*domain.Question, error) {
	if s.adapter != nil {
		return s.adapter.List(filter)
	}
	return s.jsonLoad(filter)
}

// GetByUID returns the question with the given UID, or nil when absent.
func (s *QuestionService) GetByUID(uid string) (*domain.Question, error) {
	if s.adapter != nil {
		return s.adapter.GetByUID(uid)
	}
	return s.jsonGetByUID(uid)
}

// Save validates and persists the question. Saving a record whose content
// is unchanged is a no-op, so an idle re-save never rewrites the store.
func (s *QuestionService) Save(q *domain.Question, isNew bool) error {
	if q == nil {
		return domain.NewValidationFailedError("cannot save nil question")
	}
	if isNew && q.UID == "" {
		q.UID = util.NewUID()
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if !isNew {
		existing, err := s.GetByUID(q.UID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.NewQuestionNotFoundError(q.UID)
		}
		if existing.Equal(q) {
			logger.Get().Debug("skipping save of unchanged question",
				zap.String("uid", q.UID))
			return nil
		}
	}

	if s.adapter != nil {
		return s.adapter.Save(q, isNew)
	}
	if err := s.store.UpsertAndDelete([]*domain.Question{q}, nil); err != nil {
		return err
	}
	return s.rebuildIndex()
}

// Delete permanently removes the question. Deleting an absent UID is not
// an error.
func (s *QuestionService) Delete(uid string) error {
	if s.adapter != nil {
		return s.adapter.Delete(uid)
	}
	if err := s.store.UpsertAndDelete(nil, []string{uid}); err != nil {
		return err
	}
	return s.rebuildIndex()
}

// Search returns questions whose text, option text, explanation, tags or
// difficulty contain the given substring, filtered and newest first.
func (s *QuestionService) Search(text string, filter domain.Filter) ([]*domain.Question, error) {
	if s.adapter != nil {
		return s.adapter.Search(text, filter)
	}
	return s.jsonSearch(text, filter)
}

// Count returns the number of questions matching the filter.
func (s *QuestionService) Count(filter domain.Filter) (int, error) {
	if s.adapter != nil {
		return s.adapter.Count(filter)
	}
	matched, err := s.jsonCollect(filter, "")
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Tags returns all distinct tags, alphabetically ordered.
func (s *QuestionService) Tags() ([]string, error) {
	if s.adapter != nil {
		return s.adapter.AllTags()
	}
	sc, err := s.store.Scan()
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	defer sc.Close()
	set := map[string]struct{}{}
	for sc.Next() {
		for _, tag := range sc.Question().Tags {
			set[tag] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Export returns external-shaped payloads for the given UIDs in the order
// requested, skipping UIDs the store does not contain. This is the hook
// the worksheet renderer consumes.
func (s *QuestionService) Export(uids []string) ([]map[string]any, error) {
	payloads := make([]map[string]any, 0, len(uids))
	for _, uid := range uids {
		q, err := s.GetByUID(uid)
		if err != nil {
			return nil, err
		}
		if q == nil {
			logger.Get().Warn("skipping unknown uid during export", zap.String("uid", uid))
			continue
		}
		m, err := q.ToExternalMap()
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, m)
	}
	return payloads, nil
}

// Close releases backend resources.
func (s *QuestionService) Close() error {
	if s.adapter != nil {
		return s.adapter.Close()
	}
	return nil
}

// matches applies filter and substring semantics shared by the in-memory
// JSON paths. Text matching is case-insensitive, like SQL LIKE.
func matches(q *domain.Question, filter domain.Filter, text string) bool {
	if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
		return false
	}
	if len(filter.Tags) > 0 {
		hit := false
		for _, tag := range filter.Tags {
			if q.HasTag(tag) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(q.Content.Text), needle) {
		return true
	}
	for _, opt := range q.Options {
		if strings.Contains(strings.ToLower(opt.Text), needle) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(q.Explanation.Text), needle) {
		return true
	}
	for _, tag := range q.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(q.Difficulty), needle)
}

// jsonCollect streams the whole document and returns matches in file order.
func (s *QuestionService) jsonCollect(filter domain.Filter, text string) ([]*domain.Question, error) {
	sc, err := s.store.Scan()
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer sc.Close()

	var out []*domain.Question
	for sc.Next() {
		q := sc.Question()
		if matches(q, filter, text) {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// page applies newest-first ordering plus limit/offset to file-ordered
// questions. Appends land at the end of the file, so newest first means
// reverse file order, mirroring the relational backend's created_at DESC.
func page(questions []*domain.Question, filter domain.Filter) []*domain.Question {
	reversed := make([]*domain.Question, 0, len(questions))
	for i := len(questions) - 1; i >= 0; i-- {
		reversed = append(reversed, questions[i])
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(reversed) {
			return []*domain.Question{}
		}
		reversed = reversed[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(reversed) {
		reversed = reversed[:filter.Limit]
	}
	return reversed
}

func (s *QuestionService) jsonLoad(filter domain.Filter) ([]*domain.Question, error) {
	// An unfiltered page can be served through the UID index without
	// decoding records outside the requested chunk.
	if len(filter.Tags) == 0 && filter.Difficulty == "" && filter.Limit > 0 {
		return s.jsonLoadChunk(filter)
	}
	matched, err := s.jsonCollect(filter, "")
	if err != nil {
		return nil, err
	}
	return page(matched, filter), nil
}

// jsonLoadChunk pages through the collection via the UID index.
func (s *QuestionService) jsonLoadChunk(filter domain.Filter) ([]*domain.Question, error) {
	idx := jsonstore.LoadIndex(s.indexPath)
	if len(idx) == 0 {
		rebuilt, err := s.store.BuildIndex()
		if err != nil {
			return nil, err
		}
		idx = rebuilt
	}

	// Newest first: walk the index from the tail.
	reversed := make(jsonstore.Index, 0, len(idx))
	for i := len(idx) - 1; i >= 0; i-- {
		reversed = append(reversed, idx[i])
	}
	want := map[string]int{}
	for pos, uid := range reversed.Chunk(filter.Offset, filter.Limit) {
		want[uid] = pos
	}
	if len(want) == 0 {
		return []*domain.Question{}, nil
	}

	sc, err := s.store.Scan()
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			return []*domain.Question{}, nil
		}
		return nil, err
	}
	defer sc.Close()

	chunk := make([]*domain.Question, len(want))
	found := 0
	for sc.Next() && found < len(want) {
		q := sc.Question()
		if pos, ok := want[q.UID]; ok {
			chunk[pos] = q
			found++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// A stale index may reference UIDs no longer present; compact them out.
	out := make([]*domain.Question, 0, found)
	for _, q := range chunk {
		if q != nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *QuestionService) jsonGetByUID(uid string) (*domain.Question, error) {
	sc, err := s.store.Scan()
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer sc.Close()
	for sc.Next() {
		if q := sc.Question(); q.UID == uid {
			return q, nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *QuestionService) jsonSearch(text string, filter domain.Filter) ([]*domain.Question, error) {
	matched, err := s.jsonCollect(filter, text)
	if err != nil {
		return nil, err
	}
	return page(matched, filter), nil
}

// rebuildIndex refreshes the persisted UID index after a mutation. The
// index is rebuilt wholesale, never patched: positions are not stable
// across rewrites. Index write failures are logged, not surfaced; the
// index is a cache and the store file is already durable at this point.
func (s *QuestionService) rebuildIndex() error {
	idx, err := s.store.BuildIndex()
	if err != nil {
		return err
	}
	if err := jsonstore.SaveIndex(idx, s.indexPath); err != nil {
		logger.Get().Warn("failed to persist uid index",
			zap.String("path", s.indexPath), zap.Error(err))
	}
	return nil
}
