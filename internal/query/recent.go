package query

import "time"

// RecentFile is the tool-facing shape for list_recent_files (§4.7.2).
type RecentFile struct {
	Path         string
	RepositoryID string
	Language     string
	SizeBytes    int64
	IndexedAt    string
}

const defaultRecentLimit = 20

// ListRecentFiles implements list_recent_files({repository?, limit=20}).
func (e *Engine) ListRecentFiles(repositoryID string, limit int) ([]RecentFile, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := e.files.Recent(repositoryID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RecentFile, 0, len(rows))
	for _, f := range rows {
		out = append(out, RecentFile{
			Path:         f.Path,
			RepositoryID: f.RepositoryID,
			Language:     f.Language,
			SizeBytes:    f.SizeBytes,
			IndexedAt:    f.IndexedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}
