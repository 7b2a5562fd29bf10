package engine

import (
	"context"
	"fmt"

	"github.com/roach88/pedro/internal/ir"
	"github.com/roach88/pedro/internal/session"
)

// adapterPhase describes a phase that wires one adapter behind a failing
// boundary test: Integration for repositories, Contract for controllers.
type adapterPhase struct {
	testCap  Capability
	testKind ir.ArtifactKind
	implCap  Capability
	verb     string
}

var (
	integrationPhase = adapterPhase{
		testCap:  CapIntegrationTest,
		testKind: ir.KindIntegrationTest,
		implCap:  CapRepository,
		verb:     "connect repository",
	}
	contractPhase = adapterPhase{
		testCap:  CapContractTest,
		testKind: ir.KindContractTest,
		implCap:  CapController,
		verb:     "expose controller",
	}
)

func (q *Sequencer) adapterStep(ctx context.Context, s *session.Session, p adapterPhase) error {
	loop := s.Loop()
	switch loop.Stage {
	case "":
		loop.Stage = stageTest
		if t, ok := s.Artifacts().Latest(p.testKind); ok && t.Status != ir.StatusGreen {
			loop.Target = t.Name
			loop.Stage = stageImplement
		}
		return s.SetLoop(loop)

	case stageTest:
		if _, ok, err := q.author(ctx, s, p.testCap); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageImplement)

	case stageImplement:
		if ok, err := q.implement(ctx, s, p.implCap, p.testKind, ir.ChangeBehavioral); !ok || err != nil {
			return err
		}
		return q.setStage(s, stageVerify)

	case stageVerify:
		ok, err := q.verify(ctx, s, p.testKind, true)
		if err != nil {
			return err
		}
		if !ok {
			return q.setStage(s, stageImplement)
		}
		return q.setStage(s, stageCommit)

	case stageCommit:
		refs := append([]string{string(p.testKind) + "/" + loop.Target}, loop.Changes...)
		ok, err := q.commit(s, ir.CommitProposal{
			Kind:    ir.ChangeBehavioral,
			Message: fmt.Sprintf("%s: %s", loop.Target, p.verb),
			Changes: pinned(s, ir.ChangeBehavioral, refs...),
		})
		if !ok || err != nil {
			return err
		}
		return q.advance(s)
	}
	return fmt.Errorf("unknown loop stage %q", loop.Stage)
}
