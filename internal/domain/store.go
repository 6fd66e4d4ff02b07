package domain

// Backend identifies which on-disk encoding backs a store instance.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
)

/// Filter narrows Load/Count results. Tags use OR semantics: a question
// matches when it carries at least one of the requested tags. Difficulty
// is an exact match. Limit <= 0 means no limit.
type Filter struct {
	Tags       []string
	Difficulty string
	Limit      int
	Offset     int
}

// QuestionStore is the backend-agnostic operation surface consumed by all
// external callers (UI, CLI, worksheet exporter). A store instance is bound
// to one backend at open time; backends are never mixed within one store.
type QuestionStore interface {
	// Load returns questions matching the filter, most recently created first.
	Load(filter Filter) ([]*Question, error)

	// GetByUID returns the question with the given UID, or nil when absent.
	// Absence is a normal outcome, not an error.
	GetByUID(uid string) (*Question, error)

	// Save persists the question. With isNew, a UID is assigned when missing
	// and the record is inserted; otherwise the existing record with the same
	// UID is replaced wholesale. All-or-nothing: on error nothing was written.
	Save(q *Question, isNew bool) error

	// Delete permanently removes the question and all dependent data.
	Delete(uid string) error

	// Search returns questions whose text, option text, explanation, tags or
	// difficulty contain the given substring, newest first.
	Search(text string, filter Filter) ([]*Question, error)

	// Count returns the number of questions matching the filter.
	Count(filter Filter) (int, error)

	// Tags returns all distinct tags in the store, alphabetically ordered.
	Tags() ([]string, error)

	// Export returns the external-shaped payloads for the given UIDs, in the
	// order requested. UIDs not present in the store are skipped.
	Export(uids []string) ([]map[string]any, error)

	// Close releases any resources held by the backend.
	Close() error
}
