package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/internal/executor"
)

// DBPool abstracts the pgxpool.Pool surface the store touches so tests
// can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const (
	historyQueueSize    = 256
	historyInsertWindow = 3 * time.Second
)

const createHistorySQL = `
CREATE TABLE IF NOT EXISTS oil_history (
    id          UUID PRIMARY KEY,
    ts          TIMESTAMPTZ NOT NULL,
    line        TEXT NOT NULL,
    status      TEXT NOT NULL,
    code        TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL,
    session     UUID NOT NULL
)`

const createHistoryIndexSQL = `
CREATE INDEX IF NOT EXISTS oil_history_ts_idx ON oil_history (ts DESC)`

const insertHistorySQL = `
INSERT INTO oil_history (id, ts, line, status, code, duration_ms, session)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const recentHistorySQL = `
SELECT id, ts, line, status, code, duration_ms, session
FROM oil_history
ORDER BY ts DESC
LIMIT $1`

// Row is one stored history line.
type Row struct {
	ID      uuid.UUID
	At      time.Time
	Line    string
	Status  string
	Code    string
	Took    time.Duration
	Session uuid.UUID
}

// History persists executed lines to Postgres. Writes go through a
// bounded queue and a single writer, so recording never blocks the
// command path; a full queue drops the line instead. A nil *History is
// a no-op, which is how an unconfigured DSN behaves.
type History struct {
	pool DBPool
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan executor.HistoryEntry
	done   chan struct{}
}

// NewHistory verifies the connection, creates the schema if needed, and
// starts the writer.
func NewHistory(ctx context.Context, pool DBPool, logger *zap.Logger) (*History, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	h := &History{
		pool:  pool,
		log:   logger.Named("history"),
		queue: make(chan executor.HistoryEntry, historyQueueSize),
		done:  make(chan struct{}),
	}
	if err := h.ensureSchema(ctx); err != nil {
		return nil, err
	}
	go h.run()
	return h, nil
}

func (h *History) ensureSchema(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, createHistorySQL); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	if _, err := h.pool.Exec(ctx, createHistoryIndexSQL); err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}
	return nil
}

// Record queues the entry for insertion. It never blocks and never
// fails; history is advisory, not transactional.
func (h *History) Record(_ context.Context, entry executor.HistoryEntry) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.queue <- entry:
	default:
		h.log.Warn("history queue full, dropping line", zap.String("line", entry.Line))
	}
}

func (h *History) run() {
	defer close(h.done)
	for entry := range h.queue {
		h.insert(entry)
	}
}

func (h *History) insert(entry executor.HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), historyInsertWindow)
	defer cancel()
	_, err := h.pool.Exec(ctx, insertHistorySQL,
		uuid.New(), time.Now().UTC(),
		entry.Line, entry.Status, entry.Code,
		entry.Took.Milliseconds(), entry.Session)
	if err != nil {
		h.log.Warn("history insert failed", zap.Error(err), zap.String("line", entry.Line))
	}
}

// Recent returns the newest n lines, newest first. n <= 0 means 20.
func (h *History) Recent(ctx context.Context, n int) ([]Row, error) {
	if h == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 20
	}
	rows, err := h.pool.Query(ctx, recentHistorySQL, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ms int64
		if err := rows.Scan(&r.ID, &r.At, &r.Line, &r.Status, &r.Code, &ms, &r.Session); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Took = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during history row iteration: %w", err)
	}
	return out, nil
}

// Close drains the queue, stops the writer, and closes the pool.
func (h *History) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()
	<-h.done
	h.pool.Close()
}
