package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/ir"
)

func TestTracker_AcceptanceRedUntilEvaluatedGreen(t *testing.T) {
	tr := NewTestStatusTracker(TrackerState{})
	tr.TrackAcceptance("checkout")
	assert.True(t, tr.AcceptanceRed())

	for i := 0; i < 3; i++ {
		tr.RecordUnit("unit", ir.OutcomeRed)
		tr.RecordUnit("unit", ir.OutcomeGreen)
		assert.True(t, tr.AcceptanceRed(), "unit transitions alone never flip acceptance")
		require.NoError(t, tr.RecordAcceptance(ir.OutcomeRed))
		assert.True(t, tr.AcceptanceRed())
	}

	tr.RecordUnit("unit-2", ir.OutcomeGreen)
	require.NoError(t, tr.RecordAcceptance(ir.OutcomeGreen))
	assert.False(t, tr.AcceptanceRed())
	assert.Equal(t, 4, tr.Evaluations())
}

func TestTracker_RejectsGreenWithoutUnitTransition(t *testing.T) {
	tr := NewTestStatusTracker(TrackerState{})
	tr.TrackAcceptance("checkout")

	err := tr.RecordAcceptance(ir.OutcomeGreen)
	require.ErrorIs(t, err, ErrAcceptanceByAssertion)
	assert.True(t, tr.AcceptanceRed())
	assert.Equal(t, 0, tr.Evaluations())

	// A unit test that was already Green does not count again.
	tr.RecordUnit("u1", ir.OutcomeGreen)
	require.NoError(t, tr.RecordAcceptance(ir.OutcomeRed))
	tr.RecordUnit("u1", ir.OutcomeGreen)
	require.ErrorIs(t, tr.RecordAcceptance(ir.OutcomeGreen), ErrAcceptanceByAssertion)
}

func TestTracker_RequiresTrackedAcceptance(t *testing.T) {
	tr := NewTestStatusTracker(TrackerState{})
	require.Error(t, tr.RecordAcceptance(ir.OutcomeRed))
}

func TestTracker_Summary(t *testing.T) {
	tr := NewTestStatusTracker(TrackerState{})
	assert.Equal(t, ir.SummaryAllGreen, tr.Summary())

	tr.TrackAcceptance("checkout")
	assert.Equal(t, ir.SummaryAllGreen, tr.Summary(), "acceptance is the loop target before its first Green")

	tr.Record(ir.KindUnitTest, "u1", "")
	assert.Equal(t, ir.SummaryUnrun, tr.Summary())

	tr.RecordUnit("u1", ir.OutcomeRed)
	assert.Equal(t, ir.SummaryRed, tr.Summary())

	tr.RecordUnit("u1", ir.OutcomeGreen)
	assert.True(t, tr.AllGreen())

	require.NoError(t, tr.RecordAcceptance(ir.OutcomeGreen))
	assert.True(t, tr.AllGreen())

	tr.RecordUnit("u2", ir.OutcomeGreen)
	require.NoError(t, tr.RecordAcceptance(ir.OutcomeRed))
	assert.Equal(t, ir.SummaryRed, tr.Summary(), "acceptance regressing after Green is a failure")
}

func TestTracker_StateIsACopy(t *testing.T) {
	tr := NewTestStatusTracker(TrackerState{})
	tr.RecordUnit("u1", ir.OutcomeGreen)

	st := tr.State()
	st.Tests[0].Outcome = ir.OutcomeRed

	out, ok := tr.Outcome(ir.KindUnitTest, "u1")
	require.True(t, ok)
	assert.Equal(t, ir.OutcomeGreen, out)
	assert.Len(t, tr.Entries(), 1)
}
