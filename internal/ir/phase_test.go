package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrder(t *testing.T) {
	phases := Phases()
	require.Len(t, phases, 7)
	for i := 1; i < len(phases); i++ {
		assert.Less(t, phases[i-1], phases[i])
	}
	assert.Equal(t, PhasePlanning, phases[0])
	assert.Equal(t, PhaseCommit, phases[len(phases)-1])
}

func TestPhaseNext(t *testing.T) {
	next, ok := PhaseContract.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseReview, next)

	_, ok = PhaseCommit.Next()
	assert.False(t, ok)
}

func TestParsePhase(t *testing.T) {
	for _, in := range []string{"DomainImplementation", "domain-implementation", "domain_implementation", " DOMAINIMPLEMENTATION "} {
		p, err := ParsePhase(in)
		require.NoError(t, err, in)
		assert.Equal(t, PhaseDomainImplementation, p)
	}

	_, err := ParsePhase("Deploy")
	assert.Error(t, err)
}

func TestPhaseJSONUsesNames(t *testing.T) {
	data, err := json.Marshal(EntryPoint{Phase: PhaseTestWriting, Rule: "r5"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"TestWriting","rule":"r5"}`, string(data))

	var ep EntryPoint
	require.NoError(t, json.Unmarshal([]byte(`{"phase":"Integration","rule":"x"}`), &ep))
	assert.Equal(t, PhaseIntegration, ep.Phase)
}

func TestInvalidPhaseString(t *testing.T) {
	assert.Equal(t, "Phase(42)", Phase(42).String())
	_, err := Phase(42).MarshalText()
	assert.Error(t, err)
}

func TestEntryPointString(t *testing.T) {
	assert.Equal(t, "Planning/story_review", EntryPoint{Phase: PhasePlanning, SubStep: SubStepStoryReview}.String())
	assert.Equal(t, "Review", EntryPoint{Phase: PhaseReview}.String())
}
