package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// SQLiteStore persists samples to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite sample store.
// The path should be a file path (e.g., "./samples.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL,
			timestamp_ns INTEGER NOT NULL,
			sampling_period_ns INTEGER,
			thread_id INTEGER,
			thread_name TEXT,
			thread_native_id INTEGER,
			task_id INTEGER,
			task_name TEXT,
			frames TEXT NOT NULL,
			nframes INTEGER NOT NULL,
			local_root_span_id INTEGER,
			span_id INTEGER,
			trace_type TEXT,
			trace_resource_container TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_samples_local_root
		ON samples(local_root_span_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store. The batch is written in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, batchID string, samples []*event.StackBasedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (
			batch_id, timestamp_ns, sampling_period_ns,
			thread_id, thread_name, thread_native_id, task_id, task_name,
			frames, nframes,
			local_root_span_id, span_id, trace_type, trace_resource_container
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, e := range samples {
		if e == nil {
			continue
		}
		frames, err := json.Marshal(e.Frames)
		if err != nil {
			return fmt.Errorf("encode frames: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			batchID,
			e.TimestampNS(),
			nullDuration(e.SamplingPeriod),
			nullable(e.ThreadID),
			nullable(e.ThreadName),
			nullable(e.ThreadNativeID),
			nullable(e.TaskID),
			nullable(e.TaskName),
			string(frames),
			e.NFrames,
			nullSpanID(e.LocalRootSpanID),
			nullSpanID(e.SpanID),
			nullable(e.TraceType),
			nullable(e.TraceResourceContainer),
		); err != nil {
			return fmt.Errorf("append sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// ByLocalRoot implements Store.
func (s *SQLiteStore) ByLocalRoot(ctx context.Context, id uint64) ([]*event.StackBasedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ns, sampling_period_ns,
			thread_id, thread_name, thread_native_id, task_id, task_name,
			frames, nframes,
			local_root_span_id, span_id, trace_type, trace_resource_container
		FROM samples
		WHERE local_root_span_id = ?
		ORDER BY timestamp_ns, id
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	out := []*event.StackBasedEvent{}
	for rows.Next() {
		e, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

// EndpointCounts implements Store.
func (s *SQLiteStore) EndpointCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_resource_container, COUNT(*)
		FROM samples
		WHERE trace_resource_container IS NOT NULL
		GROUP BY trace_resource_container
	`)
	if err != nil {
		return nil, fmt.Errorf("count endpoints: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var res string
		var n int
		if err := rows.Scan(&res, &n); err != nil {
			return nil, fmt.Errorf("scan endpoint count: %w", err)
		}
		counts[res] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoint counts: %w", err)
	}
	return counts, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanSample(rows *sql.Rows) (*event.StackBasedEvent, error) {
	var (
		ts             int64
		period         sql.NullInt64
		threadID       sql.NullInt64
		threadName     sql.NullString
		threadNativeID sql.NullInt64
		taskID         sql.NullInt64
		taskName       sql.NullString
		frames         string
		nframes        int
		localRoot      sql.NullInt64
		spanID         sql.NullInt64
		traceType      sql.NullString
		resource       sql.NullString
	)
	if err := rows.Scan(&ts, &period,
		&threadID, &threadName, &threadNativeID, &taskID, &taskName,
		&frames, &nframes,
		&localRoot, &spanID, &traceType, &resource,
	); err != nil {
		return nil, fmt.Errorf("scan sample: %w", err)
	}

	var fs []event.Frame
	if err := json.Unmarshal([]byte(frames), &fs); err != nil {
		return nil, fmt.Errorf("decode frames: %w", err)
	}

	return &event.StackBasedEvent{
		SampleEvent: event.SampleEvent{
			Base:           event.Base{Timestamp: time.Unix(0, ts)},
			SamplingPeriod: event.OptOf(time.Duration(period.Int64), period.Valid),
		},
		ThreadID:               event.OptOf(threadID.Int64, threadID.Valid),
		ThreadName:             event.OptOf(threadName.String, threadName.Valid),
		ThreadNativeID:         event.OptOf(threadNativeID.Int64, threadNativeID.Valid),
		TaskID:                 event.OptOf(taskID.Int64, taskID.Valid),
		TaskName:               event.OptOf(taskName.String, taskName.Valid),
		Frames:                 fs,
		NFrames:                nframes,
		LocalRootSpanID:        event.OptOf(uint64(localRoot.Int64), localRoot.Valid),
		SpanID:                 event.OptOf(uint64(spanID.Int64), spanID.Valid),
		TraceType:              event.OptOf(traceType.String, traceType.Valid),
		TraceResourceContainer: event.OptOf(resource.String, resource.Valid),
	}, nil
}

// nullable maps an absent value to SQL NULL.
func nullable[T any](o event.Opt[T]) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return nil
}

func nullDuration(o event.Opt[time.Duration]) any {
	if v, ok := o.Get(); ok {
		return int64(v)
	}
	return nil
}

// nullSpanID stores span ids bit-for-bit in a signed INTEGER column.
func nullSpanID(o event.Opt[uint64]) any {
	if v, ok := o.Get(); ok {
		return int64(v)
	}
	return nil
}
