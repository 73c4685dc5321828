package audit

import "context"

type ScanRepository interface {
	Insert(ctx context.Context, e *ScanEntry) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*ScanEntry, int, error)
}
