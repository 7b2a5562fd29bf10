package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

var (
	// ErrNotFound is returned when no session has the requested id.
	ErrNotFound = errors.New("session not found")

	// ErrStaleState is returned by Save when the stored session is newer.
	ErrStaleState = errors.New("stored session is newer than the state being saved")
)

// Summary is one row of List.
type Summary struct {
	ID        string           `json:"id"`
	Objective string           `json:"objective"`
	Status    ir.SessionStatus `json:"status"`
	Phase     string           `json:"phase"`
	SubStep   string           `json:"sub_step,omitempty"`
	Seq       int64            `json:"seq"`
	Commits   int              `json:"commits"`
}

// Save writes the session state, appending events and commits not yet stored.
//
// The state row is replaced only when st.Seq is at least the stored seq;
// otherwise ErrStaleState is returned and nothing is written.
func (s *Store) Save(ctx context.Context, st session.State) error {
	events := st.Events
	st.Events = nil
	stateJSON, err := marshalJSON(st)
	if err != nil {
		return fmt.Errorf("save session %s: %w", st.ID, err)
	}
	hash, err := stateHash(st.ID, st.Seq, events)
	if err != nil {
		return fmt.Errorf("save session %s: %w", st.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save session %s: %w", st.ID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, objective, status, phase, sub_step, seq, state, state_hash, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			phase = excluded.phase,
			sub_step = excluded.sub_step,
			seq = excluded.seq,
			state = excluded.state,
			state_hash = excluded.state_hash,
			ir_version = excluded.ir_version
		WHERE sessions.seq <= excluded.seq
	`,
		st.ID,
		st.Objective,
		string(st.Status),
		st.Phase.String(),
		string(st.SubStep),
		st.Seq,
		stateJSON,
		hash,
		st.Version,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", st.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save session %s at seq %d: %w", st.ID, st.Seq, ErrStaleState)
	}

	for _, e := range events {
		attrs, err := marshalAttrs(e.Attrs)
		if err != nil {
			return fmt.Errorf("save event %d: %w", e.Seq, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (session_id, seq, type, phase, attrs)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, st.ID, e.Seq, e.Type, e.Phase.String(), attrs); err != nil {
			return fmt.Errorf("save event %d: %w", e.Seq, err)
		}
	}

	for _, c := range st.Commits {
		changes, err := marshalJSON(c.Changes)
		if err != nil {
			return fmt.Errorf("save commit %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO commits (session_id, id, seq, change_kind, message, phase, test_status, changes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, st.ID, c.ID, c.Seq, string(c.ChangeKind), c.Message, c.Phase.String(), string(c.TestStatusAtCommit), changes); err != nil {
			return fmt.Errorf("save commit %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session %s: %w", st.ID, err)
	}
	return nil
}

// Load reads a session state with its full event trace.
func (s *Store) Load(ctx context.Context, id string) (session.State, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM sessions WHERE id = ?`, id).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return session.State{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return session.State{}, fmt.Errorf("load session %s: %w", id, err)
	}

	var st session.State
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return session.State{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if st.Events, err = s.Events(ctx, id); err != nil {
		return session.State{}, err
	}
	return st, nil
}

// VerifyHash recomputes the fingerprint of a stored session from its
// stored trace and reports whether it matches the one written by Save.
func (s *Store) VerifyHash(ctx context.Context, id string) (bool, error) {
	var (
		seq    int64
		stored string
	)
	err := s.db.QueryRowContext(ctx, `SELECT seq, state_hash FROM sessions WHERE id = ?`, id).Scan(&seq, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("verify session %s: %w", id, err)
	}
	events, err := s.Events(ctx, id)
	if err != nil {
		return false, err
	}
	got, err := stateHash(id, seq, events)
	if err != nil {
		return false, fmt.Errorf("verify session %s: %w", id, err)
	}
	return got == stored, nil
}

// Events returns the session trace in seq order.
func (s *Store) Events(ctx context.Context, id string) ([]ir.Event, error) {
	return s.QueryEvents(ctx, EventQuery{Session: id})
}

// Commits returns the session's commits in seq order.
func (s *Store) Commits(ctx context.Context, id string) ([]ir.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, change_kind, message, phase, test_status, changes
		FROM commits
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	commits := []ir.Commit{}
	for rows.Next() {
		var (
			c       ir.Commit
			kind    string
			phase   string
			status  string
			changes string
		)
		if err := rows.Scan(&c.ID, &c.Seq, &kind, &c.Message, &phase, &status, &changes); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		c.ChangeKind = ir.ChangeKind(kind)
		c.TestStatusAtCommit = ir.TestSummary(status)
		if c.Phase, err = ir.ParsePhase(phase); err != nil {
			return nil, fmt.Errorf("commit %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(changes), &c.Changes); err != nil {
			return nil, fmt.Errorf("commit %s changes: %w", c.ID, err)
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	return commits, nil
}

// List returns a summary of every stored session, ordered by id.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.objective, s.status, s.phase, s.sub_step, s.seq,
			(SELECT COUNT(*) FROM commits c WHERE c.session_id = s.id)
		FROM sessions s
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum    Summary
			status string
		)
		if err := rows.Scan(&sum.ID, &sum.Objective, &status, &sum.Phase, &sum.SubStep, &sum.Seq, &sum.Commits); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Status = ir.SessionStatus(status)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// marshalJSON encodes v without HTML escaping.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// marshalAttrs stores event attributes as canonical JSON.
func marshalAttrs(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("marshal attrs: %w", err)
	}
	return string(data), nil
}

// stateHash fingerprints a saved state by its trace.
func stateHash(id string, seq int64, events []ir.Event) (string, error) {
	entries := make([]map[string]any, 0, len(events)+1)
	entries = append(entries, map[string]any{"id": id, "seq": seq})
	for _, e := range events {
		entries = append(entries, e.Canonical())
	}
	return ir.SnapshotHash(entries)
}
