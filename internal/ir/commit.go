package ir

// TestSummary is the aggregate test state of a session.
type TestSummary string

const (
	SummaryAllGreen TestSummary = "all_green"
	SummaryRed      TestSummary = "red"
	SummaryUnrun    TestSummary = "unrun"
)

// Change is one entry of a commit proposal. Seq pins the artifact version
// the change refers to; zero means unversioned.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Ref  string     `json:"ref"`
	Seq  int64      `json:"seq,omitempty"`
}

// CommitProposal is a unit of work submitted to the commit policy.
// Kind is the declared change kind; it may be empty, in which case it is
// derived from Changes.
type CommitProposal struct {
	Kind    ChangeKind `json:"kind,omitempty"`
	Message string     `json:"message"`
	Changes []Change   `json:"changes,omitempty"`
}

// Kinds returns the distinct change kinds present in the proposal, including
// the declared kind, in first-seen order.
func (p CommitProposal) Kinds() []ChangeKind {
	var kinds []ChangeKind
	add := func(k ChangeKind) {
		if k == "" {
			return
		}
		for _, seen := range kinds {
			if seen == k {
				return
			}
		}
		kinds = append(kinds, k)
	}
	add(p.Kind)
	for _, c := range p.Changes {
		add(c.Kind)
	}
	return kinds
}

// Commit is a recorded unit of work.
type Commit struct {
	ID                 string      `json:"id"`
	Seq                int64       `json:"seq"`
	ChangeKind         ChangeKind  `json:"change_kind"`
	Message            string      `json:"message"`
	Phase              Phase       `json:"phase"`
	TestStatusAtCommit TestSummary `json:"test_status_at_commit"`
	Changes            []Change    `json:"changes,omitempty"`
}
