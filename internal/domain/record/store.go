package record

import "context"

// Store loads and persists the rental table.
type Store interface {
	Load(ctx context.Context) (*Table, error)
	// Save writes back the dirty cells of t. Untouched cells, styles and column order are kept.
	Save(ctx context.Context, t *Table) error
	// Path is the location of the underlying table, used for backups and attachments.
	Path() string
}
