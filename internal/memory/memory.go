// Package memory implements the Memory Layer (§4.9): append-only
// Decision, Failure, Pattern, and Insight records that share the Store's
// FTS machinery with code search. A record's content is never changed
// after insert — "deprecating" one is done by appending a new record and
// linking the old one to it via Supersede, which sets only the old
// record's superseded_by field.
package memory

import (
	"github.com/google/uuid"

	"kotadb/internal/kotaerr"
	"kotadb/internal/storage"
)

// The four record kinds (§4.9, GLOSSARY).
const (
	KindDecisionRecord = "decision"
	KindFailureRecord  = "failure"
	KindPatternRecord  = "pattern"
	KindInsightRecord  = "insight"
)

// Record is the domain view of a storage.MemoryRecord returned to callers
// (CLI, MCP tools, REST handlers).
type Record struct {
	ID           string                 `json:"id"`
	Kind         string                 `json:"kind"`
	RepositoryID *string                `json:"repository_id,omitempty"`
	RelatedFiles []string               `json:"related_files,omitempty"`
	Content      string                 `json:"content"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    string                 `json:"created_at"`
	SupersededBy *string                `json:"superseded_by,omitempty"`
}

// Input is what a caller supplies to record a new entry.
type Input struct {
	RepositoryID *string
	RelatedFiles []string
	Content      string
	Metadata     map[string]interface{}
	Supersedes   string // optional id of a record this one replaces
}

// Layer is the Memory Layer's domain service, a thin wrapper around
// storage.MemoryRepo and the Store's FTS search.
type Layer struct {
	db      *storage.DB
	records *storage.MemoryRepo
}

func New(db *storage.DB) *Layer {
	return &Layer{db: db, records: storage.NewMemoryRepo(db)}
}

// Record appends a new record of the given kind (§4.9 steps: validate
// content, insert, optionally supersede an older record).
func (l *Layer) Record(kind string, in Input) (*Record, error) {
	if in.Content == "" {
		return nil, kotaerr.New(kotaerr.InvalidArgument, "content must not be empty")
	}
	if !isValidKind(kind) {
		return nil, kotaerr.New(kotaerr.InvalidArgument, "invalid memory record kind: "+kind)
	}

	rec := &storage.MemoryRecord{
		ID:           uuid.NewString(),
		Kind:         kind,
		RepositoryID: in.RepositoryID,
		RelatedFiles: in.RelatedFiles,
		Content:      in.Content,
		Metadata:     in.Metadata,
	}
	if err := l.records.Append(rec); err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "appending memory record", err)
	}

	if in.Supersedes != "" {
		if err := l.records.Supersede(in.Supersedes, rec.ID); err != nil {
			return nil, kotaerr.Wrap(kotaerr.StoreWriteError, "superseding prior memory record", err)
		}
	}

	stored, err := l.records.Get(rec.ID)
	if err != nil || stored == nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "reloading recorded memory entry", err)
	}
	return toRecord(stored), nil
}

func (l *Layer) RecordDecision(in Input) (*Record, error) { return l.Record(KindDecisionRecord, in) }
func (l *Layer) RecordFailure(in Input) (*Record, error)  { return l.Record(KindFailureRecord, in) }
func (l *Layer) RecordPattern(in Input) (*Record, error)  { return l.Record(KindPatternRecord, in) }
func (l *Layer) RecordInsight(in Input) (*Record, error)  { return l.Record(KindInsightRecord, in) }

const defaultSearchLimit = 10

// Search runs the FTS exact->prefix->LIKE cascade over one kind of record
// (§4.9, delegating to the Store's shared FTS engine per §4.1).
func (l *Layer) Search(kind, term string, limit int) ([]Record, error) {
	if !isValidKind(kind) {
		return nil, kotaerr.New(kotaerr.InvalidArgument, "invalid memory record kind: "+kind)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	hits, err := l.db.SearchMemory(kind, term, limit)
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "searching memory records", err)
	}

	results := make([]Record, 0, len(hits))
	for _, h := range hits {
		full, err := l.records.Get(h.ID)
		if err != nil || full == nil {
			continue
		}
		results = append(results, *toRecord(full))
	}
	return results, nil
}

func (l *Layer) SearchDecisions(term string, limit int) ([]Record, error) {
	return l.Search(KindDecisionRecord, term, limit)
}
func (l *Layer) SearchFailures(term string, limit int) ([]Record, error) {
	return l.Search(KindFailureRecord, term, limit)
}
func (l *Layer) SearchPatterns(term string, limit int) ([]Record, error) {
	return l.Search(KindPatternRecord, term, limit)
}
func (l *Layer) SearchInsights(term string, limit int) ([]Record, error) {
	return l.Search(KindInsightRecord, term, limit)
}

func isValidKind(kind string) bool {
	switch kind {
	case KindDecisionRecord, KindFailureRecord, KindPatternRecord, KindInsightRecord:
		return true
	default:
		return false
	}
}

func toRecord(m *storage.MemoryRecord) *Record {
	return &Record{
		ID:           m.ID,
		Kind:         m.Kind,
		RepositoryID: m.RepositoryID,
		RelatedFiles: m.RelatedFiles,
		Content:      m.Content,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		SupersededBy: m.SupersededBy,
	}
}
