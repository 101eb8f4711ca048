package repositorycache

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

var _ Source[any] = (*BunSource[any])(nil)

// BunSource is a minimal Source over a bun database or transaction, for
// models that have no go-repository-bun repository.
type BunSource[T any] struct {
	db bun.IDB
}

func NewBunSource[T any](db bun.IDB) *BunSource[T] {
	return &BunSource[T]{db: db}
}

// List selects the records matching criteria and counts them.
func (s *BunSource[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	records := []T{}
	q := s.db.NewSelect().Model(&records)
	for _, c := range criteria {
		q = c(q)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
