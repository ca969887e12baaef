package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"courtetl/internal/config"
	"courtetl/internal/frame"
	"courtetl/internal/logger"
	"courtetl/internal/metrics"
)

// IndexColumn holds the row index in mirrored tables.
const IndexColumn = "row_index"

// Mirror copies f into the database described by cfg. The destination gets
// an integer row_index column followed by f's columns as text; nulls stay
// NULL. With AutoCreateTable the table is created first when missing.
func Mirror(ctx context.Context, log logger.Logger, job string, cfg config.Storage, f *frame.Frame) (int64, error) {
	repo, err := New(ctx, Config{Kind: cfg.Kind, DSN: cfg.DB.DSN, Table: cfg.DB.Table})
	if err != nil {
		return 0, err
	}
	defer repo.Close()
	return copyFrame(ctx, log, job, cfg, repo, f)
}

func copyFrame(ctx context.Context, log logger.Logger, job string, cfg config.Storage, repo Repository, f *frame.Frame) (int64, error) {
	columns := append([]string{IndexColumn}, f.Columns()...)
	if cfg.DB.AutoCreateTable {
		defs := make([]Column, len(columns))
		for i, c := range columns {
			defs[i] = Column{Name: c, Int: i == 0}
		}
		if err := EnsureTable(ctx, cfg.Kind, repo, cfg.DB.Table, defs); err != nil {
			return 0, err
		}
	}

	batchSize := cfg.DB.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	start := time.Now()
	var batches int64
	copyFn := func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		n, err := repo.CopyFrom(ctx, cols, rows)
		if err != nil {
			return n, errors.Wrapf(err, "copy batch %d into %s", batches+1, cfg.DB.Table)
		}
		batches++
		metrics.RecordBatches(job, 1)
		log.Debugf("copied batch %d (%d rows) into %s", batches, n, cfg.DB.Table)
		return n, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, batchSize)
	g.Go(func() error {
		defer close(rows)
		for i := 0; i < f.Len(); i++ {
			rec := make([]any, 0, len(columns))
			rec = append(rec, int64(f.Index(i)))
			for _, v := range f.Row(i) {
				rec = append(rec, v.Any())
			}
			select {
			case rows <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var total int64
	g.Go(func() error {
		n, err := LoadBatches(gctx, columns, rows, batchSize, copyFn)
		total = n
		return err
	})
	if err := g.Wait(); err != nil {
		return total, err
	}
	log.Infof("mirrored %d rows into %s (%s) in %d batches, %s", total, cfg.DB.Table, cfg.Kind, batches, time.Since(start).Round(time.Millisecond))
	return total, nil
}
