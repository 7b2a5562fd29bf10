package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/pedro/internal/ir"
)

// EventQuery selects events of one session. Zero fields do not filter.
type EventQuery struct {
	Session string
	// Type matches an event type exactly or as a dotted prefix: "test"
	// matches "test.run" but not "tests.run".
	Type  string
	Phase *ir.Phase
	// After keeps only events with a seq greater than After.
	After int64
}

// predicate is one condition of a WHERE clause. Values are always bound as
// parameters, never interpolated.
type predicate interface {
	sql() (string, []any)
}

type equals struct {
	column string
	value  any
}

func (p equals) sql() (string, []any) {
	return p.column + " = ?", []any{p.value}
}

type dottedPrefix struct {
	column string
	prefix string
}

func (p dottedPrefix) sql() (string, []any) {
	like := likeEscaper.Replace(p.prefix) + ".%"
	return "(" + p.column + " = ? OR " + p.column + ` LIKE ? ESCAPE '\')`, []any{p.prefix, like}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type greater struct {
	column string
	value  int64
}

func (p greater) sql() (string, []any) {
	return p.column + " > ?", []any{p.value}
}

type and []predicate

func (p and) sql() (string, []any) {
	if len(p) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, len(p))
	var params []any
	for i, pred := range p {
		s, args := pred.sql()
		parts[i] = s
		params = append(params, args...)
	}
	return strings.Join(parts, " AND "), params
}

// compile returns the SELECT for q. Every query orders by seq.
func (q EventQuery) compile() (string, []any) {
	where := and{equals{"session_id", q.Session}}
	if q.Type != "" {
		where = append(where, dottedPrefix{"type", q.Type})
	}
	if q.Phase != nil {
		where = append(where, equals{"phase", q.Phase.String()})
	}
	if q.After > 0 {
		where = append(where, greater{"seq", q.After})
	}
	cond, params := where.sql()
	return "SELECT seq, type, phase, attrs FROM events WHERE " + cond + " ORDER BY seq ASC", params
}

// QueryEvents returns the events matching q in seq order.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]ir.Event, error) {
	query, params := q.compile()
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			e     ir.Event
			phase string
			attrs string
		)
		if err := rows.Scan(&e.Seq, &e.Type, &phase, &attrs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.Phase, err = ir.ParsePhase(phase); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.Seq, err)
		}
		if attrs != "{}" {
			if err := json.Unmarshal([]byte(attrs), &e.Attrs); err != nil {
				return nil, fmt.Errorf("event %d attrs: %w", e.Seq, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
