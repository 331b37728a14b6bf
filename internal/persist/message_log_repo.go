package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

type pendingEntry struct {
	log   string
	entry LogEntry
}

// MessageLogRepo stores message logs in PostgreSQL. Appends are buffered and
// written in one transaction by Flush.
type MessageLogRepo struct {
	db *DB

	mu      sync.Mutex
	pending []pendingEntry
	nextSeq map[string]int64
}

func NewMessageLogRepo(db *DB) *MessageLogRepo {
	return &MessageLogRepo{db: db, nextSeq: make(map[string]int64)}
}

func (r *MessageLogRepo) Logs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT name FROM message_logs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return names, nil
}

// Create starts an empty log, replacing any log of the same name.
func (r *MessageLogRepo) Create(ctx context.Context, name string) error {
	r.dropPending(name)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM message_logs WHERE name = $1`, name); err != nil {
		return fmt.Errorf("create log %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO message_logs (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("create log %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create log commit: %w", err)
	}

	r.mu.Lock()
	r.nextSeq[name] = 0
	r.mu.Unlock()
	return nil
}

func (r *MessageLogRepo) Delete(ctx context.Context, name string) error {
	r.dropPending(name)
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM message_logs WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete log %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	r.mu.Lock()
	delete(r.nextSeq, name)
	r.mu.Unlock()
	return nil
}

// Append buffers e until the next Flush.
func (r *MessageLogRepo) Append(_ context.Context, name string, e LogEntry) error {
	r.mu.Lock()
	r.pending = append(r.pending, pendingEntry{log: name, entry: e})
	r.mu.Unlock()
	return nil
}

// Flush writes buffered entries in a single transaction. On failure the
// entries stay buffered for the next attempt.
func (r *MessageLogRepo) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	seqs := make(map[string]int64, len(r.nextSeq))
	for k, v := range r.nextSeq {
		seqs[k] = v
	}
	r.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	restore := func() {
		r.mu.Lock()
		r.pending = append(batch, r.pending...)
		r.mu.Unlock()
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		restore()
		return fmt.Errorf("flush logs begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range batch {
		seq := seqs[p.log]
		if _, err := tx.Exec(ctx,
			`INSERT INTO message_log_entries (log_name, seq, sim_time, data) VALUES ($1, $2, $3, $4)`,
			p.log, seq, p.entry.SimTime, p.entry.Data,
		); err != nil {
			restore()
			return fmt.Errorf("flush logs insert: %w", err)
		}
		seqs[p.log] = seq + 1
	}
	if err := tx.Commit(ctx); err != nil {
		restore()
		return fmt.Errorf("flush logs commit: %w", err)
	}

	r.mu.Lock()
	for k, v := range seqs {
		if _, live := r.nextSeq[k]; live {
			r.nextSeq[k] = v
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *MessageLogRepo) InsertTag(ctx context.Context, name string, t Tag) error {
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO message_log_tags (log_name, tag, sim_time)
		 SELECT name, $2, $3 FROM message_logs WHERE name = $1`,
		name, t.Name, t.SimTime,
	)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (r *MessageLogRepo) Tags(ctx context.Context, name string) ([]Tag, error) {
	if err := r.exists(ctx, name); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT tag, sim_time FROM message_log_tags WHERE log_name = $1 ORDER BY sim_time`, name)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tag, error) {
		var t Tag
		err := row.Scan(&t.Name, &t.SimTime)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return tags, nil
}

// Entries loads a whole log in recording order, including entries still
// waiting for a flush.
func (r *MessageLogRepo) Entries(ctx context.Context, name string) ([]LogEntry, error) {
	if err := r.exists(ctx, name); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT sim_time, data FROM message_log_entries WHERE log_name = $1 ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LogEntry, error) {
		var e LogEntry
		err := row.Scan(&e.SimTime, &e.Data)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	r.mu.Lock()
	for _, p := range r.pending {
		if p.log == name {
			entries = append(entries, p.entry)
		}
	}
	r.mu.Unlock()
	return entries, nil
}

func (r *MessageLogRepo) exists(ctx context.Context, name string) error {
	var found bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM message_logs WHERE name = $1)`, name,
	).Scan(&found)
	if err != nil {
		return fmt.Errorf("find log %s: %w", name, err)
	}
	if !found {
		return ErrLogNotFound
	}
	return nil
}

func (r *MessageLogRepo) dropPending(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.pending[:0]
	for _, p := range r.pending {
		if p.log != name {
			kept = append(kept, p)
		}
	}
	r.pending = kept
}
