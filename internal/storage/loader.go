package storage

import (
	"context"

	"github.com/pkg/errors"
)

// DefaultBatchSize is rows per CopyFrom call when none is configured.
const DefaultBatchSize = 5000

// CopyFn abstracts the bulk insert. In production it is Repository.CopyFrom;
// tests pass a fake to observe batching.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the rows reported by
// copyFn and the first error.
//
// It returns when in is closed or ctx is canceled, and never holds more than
// one batch.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.Errorf("batch size must be > 0, got %d", batchSize)
	}
	if copyFn == nil {
		return 0, errors.New("copyFn must not be nil")
	}

	var (
		total int64
		batch = make([][]any, 0, batchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		// Drivers do not retain rows past CopyFrom, so the backing array is reused.
		batch = batch[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				return total, flush()
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
