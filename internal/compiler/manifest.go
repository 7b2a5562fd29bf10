package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/pedro/internal/ir"
)

// Manifest describes a session to start: its objective, scope boundary,
// the artifacts that already exist and optional limits.
type Manifest struct {
	ID        string
	Objective string
	Scope     ir.ScopeBoundary
	Entry     *ir.EntryPoint
	Limits    Limits
	Artifacts []ir.Artifact
}

// Limits overrides configured bounds for one session. Zero means unset.
type Limits struct {
	MaxTDDIterations int
	MaxRevisions     int
}

// rawManifest mirrors #Session for decoding.
type rawManifest struct {
	ID        string `json:"id"`
	Objective string `json:"objective"`
	Scope     struct {
		Include []string `json:"include"`
		Exclude []string `json:"exclude"`
	} `json:"scope"`
	Entry   string `json:"entry"`
	SubStep string `json:"sub_step"`
	Limits  struct {
		MaxTDDIterations int `json:"max_tdd_iterations"`
		MaxRevisions     int `json:"max_revisions"`
	} `json:"limits"`
	Artifacts []rawArtifact `json:"artifacts"`
}

type rawArtifact struct {
	Kind         string          `json:"kind"`
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	QualityScore *int64          `json:"quality_score"`
	SizeDays     *int64          `json:"size_days"`
	Profile      *ir.TestProfile `json:"profile"`
	Content      string          `json:"content"`
}

// CompileManifest checks a CUE value against the session schema and
// converts it to a Manifest.
//
// The value should be the session struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`session: { objective: "..." }`)
//	m, err := CompileManifest(v.LookupPath(cue.ParsePath("session")))
func CompileManifest(v cue.Value) (*Manifest, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "session", Message: "session is required"}
	}
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("session schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Session")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(err)
	}

	var raw rawManifest
	if err := unified.Decode(&raw); err != nil {
		return nil, fromCUE(err)
	}

	m := &Manifest{
		ID:        raw.ID,
		Objective: raw.Objective,
		Scope:     ir.ScopeBoundary{Include: raw.Scope.Include, Exclude: raw.Scope.Exclude},
		Limits: Limits{
			MaxTDDIterations: raw.Limits.MaxTDDIterations,
			MaxRevisions:     raw.Limits.MaxRevisions,
		},
	}

	if raw.Entry != "" {
		phase, err := ir.ParsePhase(raw.Entry)
		if err != nil {
			return nil, &CompileError{Field: "entry", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("entry")).Pos()}
		}
		m.Entry = &ir.EntryPoint{Phase: phase, SubStep: ir.SubStep(raw.SubStep), Rule: "manifest"}
	} else if raw.SubStep != "" {
		return nil, &CompileError{Field: "sub_step", Message: "sub_step requires entry", Pos: v.LookupPath(cue.ParsePath("sub_step")).Pos()}
	}

	list := v.LookupPath(cue.ParsePath("artifacts"))
	for i, ra := range raw.Artifacts {
		a, err := convertArtifact(ra)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("artifacts[%d]", i),
				Message: err.Error(),
				Pos:     list.LookupPath(cue.MakePath(cue.Index(i))).Pos(),
			}
		}
		m.Artifacts = append(m.Artifacts, a)
	}
	return m, nil
}

func convertArtifact(ra rawArtifact) (ir.Artifact, error) {
	kind, err := ir.ParseArtifactKind(ra.Kind)
	if err != nil {
		return ir.Artifact{}, err
	}
	status := ir.StatusPending
	if ra.Status != "" {
		if status, err = ir.ParseArtifactStatus(ra.Status); err != nil {
			return ir.Artifact{}, err
		}
	}
	return ir.Artifact{
		Kind:         kind,
		Name:         ra.Name,
		Status:       status,
		QualityScore: ra.QualityScore,
		SizeDays:     ra.SizeDays,
		Profile:      ra.Profile,
		Content:      ra.Content,
	}, nil
}

// LoadManifest reads a CUE manifest file and compiles its session struct.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}
	return CompileManifest(v.LookupPath(cue.ParsePath("session")))
}
