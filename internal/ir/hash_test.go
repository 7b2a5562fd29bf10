package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitIDDeterminism(t *testing.T) {
	p := CommitProposal{
		Kind:    ChangeBehavioral,
		Message: "make unit test place-order-1 green",
		Changes: []Change{{Kind: ChangeBehavioral, Ref: "DomainCode/order"}},
	}

	id1, err := CommitID(p)
	require.NoError(t, err)
	id2, err := CommitID(p)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "CommitID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestCommitIDChangesWithContent(t *testing.T) {
	base := CommitProposal{Kind: ChangeBehavioral, Message: "m"}

	id1 := MustCommitID(base)
	id2 := MustCommitID(CommitProposal{Kind: ChangeStructural, Message: "m"})
	id3 := MustCommitID(CommitProposal{Kind: ChangeBehavioral, Message: "other"})
	id4 := MustCommitID(CommitProposal{
		Kind:    ChangeBehavioral,
		Message: "m",
		Changes: []Change{{Kind: ChangeBehavioral, Ref: "DomainCode/x"}},
	})

	assert.NotEqual(t, id1, id2, "kind is part of the content")
	assert.NotEqual(t, id1, id3, "message is part of the content")
	assert.NotEqual(t, id1, id4, "changes are part of the content")
}

func TestCommitIDPinsArtifactVersion(t *testing.T) {
	at := func(seq int64) CommitProposal {
		return CommitProposal{
			Kind:    ChangeStructural,
			Message: "refactor: DomainCode/pricing",
			Changes: []Change{{Kind: ChangeStructural, Ref: "DomainCode/pricing", Seq: seq}},
		}
	}
	assert.NotEqual(t, MustCommitID(at(12)), MustCommitID(at(31)))
	assert.Equal(t, MustCommitID(at(12)), MustCommitID(at(12)))
}

func TestSplitRef(t *testing.T) {
	kind, name, ok := SplitRef("UnitTest/adds-item")
	require.True(t, ok)
	assert.Equal(t, KindUnitTest, kind)
	assert.Equal(t, "adds-item", name)

	for _, bad := range []string{"", "adds-item", "UnitTest/", "Widget/x"} {
		_, _, ok := SplitRef(bad)
		assert.False(t, ok, bad)
	}
}

func TestCommitIDDeclaredKindMatchesDerived(t *testing.T) {
	// A proposal that declares its kind and one that derives the same kind
	// from its changes have the same content.
	declared := CommitProposal{
		Kind:    ChangeBehavioral,
		Message: "m",
		Changes: []Change{{Kind: ChangeBehavioral, Ref: "r"}},
	}
	derived := CommitProposal{
		Message: "m",
		Changes: []Change{{Kind: ChangeBehavioral, Ref: "r"}},
	}
	assert.Equal(t, MustCommitID(declared), MustCommitID(derived))
}

func TestSuspensionTokenBindsPosition(t *testing.T) {
	s := Suspension{Code: CodeGateEscalation, Phase: PhaseDomainImplementation, Iteration: 2, Seq: 17}

	t1, err := SuspensionToken("session-1", s)
	require.NoError(t, err)
	t2, err := SuspensionToken("session-2", s)
	require.NoError(t, err)

	s.Seq = 18
	t3, err := SuspensionToken("session-1", s)
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
	assert.NotEqual(t, t1, t3)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t,
		hashWithDomain(DomainCommit, data),
		hashWithDomain(DomainSuspension, data),
	)
}
