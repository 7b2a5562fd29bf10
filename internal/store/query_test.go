package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/ir"
)

func TestEventQuery_Compile(t *testing.T) {
	phase := ir.PhaseReview
	tests := []struct {
		name   string
		query  EventQuery
		sql    string
		params []any
	}{
		{
			name:   "session only",
			query:  EventQuery{Session: "s-1"},
			sql:    "SELECT seq, type, phase, attrs FROM events WHERE session_id = ? ORDER BY seq ASC",
			params: []any{"s-1"},
		},
		{
			name:   "type prefix",
			query:  EventQuery{Session: "s-1", Type: "gate"},
			sql:    `SELECT seq, type, phase, attrs FROM events WHERE session_id = ? AND (type = ? OR type LIKE ? ESCAPE '\') ORDER BY seq ASC`,
			params: []any{"s-1", "gate", "gate.%"},
		},
		{
			name:   "all filters",
			query:  EventQuery{Session: "s-1", Type: "commit", Phase: &phase, After: 7},
			sql:    `SELECT seq, type, phase, attrs FROM events WHERE session_id = ? AND (type = ? OR type LIKE ? ESCAPE '\') AND phase = ? AND seq > ? ORDER BY seq ASC`,
			params: []any{"s-1", "commit", "commit.%", "Review", int64(7)},
		},
		{
			name:   "wildcards are escaped",
			query:  EventQuery{Session: "s-1", Type: "a_b%"},
			sql:    `SELECT seq, type, phase, attrs FROM events WHERE session_id = ? AND (type = ? OR type LIKE ? ESCAPE '\') ORDER BY seq ASC`,
			params: []any{"s-1", "a_b%", `a\_b\%.%`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := tt.query.compile()
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestQueryEvents(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	s := committedSession(t, "s-1")
	require.NoError(t, st.Save(ctx, s.State()))
	require.NoError(t, st.Save(ctx, committedSession(t, "s-2").State()))

	all, err := st.QueryEvents(ctx, EventQuery{Session: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, s.State().Events, all)

	tests, err := st.QueryEvents(ctx, EventQuery{Session: "s-1", Type: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, tests)
	for _, e := range tests {
		assert.Equal(t, ir.EventTestRun, e.Type)
	}

	exact, err := st.QueryEvents(ctx, EventQuery{Session: "s-1", Type: ir.EventCommitRecorded})
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	none, err := st.QueryEvents(ctx, EventQuery{Session: "s-1", Type: "tes"})
	require.NoError(t, err)
	assert.Empty(t, none)

	planning := ir.PhasePlanning
	early, err := st.QueryEvents(ctx, EventQuery{Session: "s-1", Phase: &planning})
	require.NoError(t, err)
	require.NotEmpty(t, early)
	assert.Equal(t, ir.EventSessionStarted, early[0].Type)
	for _, e := range early {
		assert.Equal(t, ir.PhasePlanning, e.Phase)
	}

	later, err := st.QueryEvents(ctx, EventQuery{Session: "s-1", After: 2})
	require.NoError(t, err)
	assert.Len(t, later, len(all)-2)
	assert.Equal(t, int64(3), later[0].Seq)

	missing, err := st.QueryEvents(ctx, EventQuery{Session: "missing"})
	require.NoError(t, err)
	assert.Empty(t, missing)
}
