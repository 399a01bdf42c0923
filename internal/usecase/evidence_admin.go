package usecase

import (
	"context"
	"fmt"

	"truthsig/internal/domain"
)

// EvidenceAdmin covers the lifecycle operations that sit outside the
// happy ingest path: deletion (which cancels an in-flight job) and
// resubmission of failed analyses.
type EvidenceAdmin struct {
	Evidence EvidenceRepository
	Ledger   CustodyEventRepository
	Queue    AnalysisQueue
	Clock    Clock
}

func (uc *EvidenceAdmin) Delete(ctx context.Context, evidenceID, actor string) error {
	evidence, err := uc.Evidence.GetByID(ctx, evidenceID)
	if err != nil {
		return err
	}
	uc.Queue.Cancel(evidenceID)
	if err := uc.Evidence.Delete(ctx, evidenceID); err != nil {
		return err
	}
	event, err := NewCustodyEvent(evidence.CaseID, domain.EventEvidenceRemoved, actor, map[string]any{
		"evidence_id": evidenceID,
		"digest":      evidence.Digest,
	})
	if err != nil {
		return err
	}
	_, err = uc.Ledger.Append(ctx, event)
	return err
}

// Reanalyze resubmits a failed job. It always re-runs from scratch;
// there is no partial resume.
func (uc *EvidenceAdmin) Reanalyze(ctx context.Context, evidenceID, actor string) (domain.Evidence, error) {
	evidence, err := uc.Evidence.GetByID(ctx, evidenceID)
	if err != nil {
		return domain.Evidence{}, err
	}
	switch evidence.AnalysisStatus {
	case domain.AnalysisFailed, domain.AnalysisDone:
	case domain.AnalysisPending, domain.AnalysisRunning:
		// A pending or running record with no live queue entry is an
		// orphan (lost enqueue, process restart); resubmission is the
		// only way it can still make progress.
		if uc.Queue.Active(evidenceID) {
			return domain.Evidence{}, fmt.Errorf("%w: evidence %s is %s", domain.ErrAnalysisInFlight, evidenceID, evidence.AnalysisStatus)
		}
	default:
		return domain.Evidence{}, fmt.Errorf("%w: evidence %s is %s", domain.ErrAnalysisInFlight, evidenceID, evidence.AnalysisStatus)
	}
	if err := uc.Evidence.SetStatus(ctx, evidenceID, domain.AnalysisPending); err != nil {
		return domain.Evidence{}, err
	}
	event, err := NewCustodyEvent(evidence.CaseID, domain.EventEvidenceReclassified, actor, map[string]any{
		"evidence_id": evidenceID,
		"action":      "reanalyze",
	})
	if err != nil {
		return domain.Evidence{}, err
	}
	if _, err := uc.Ledger.Append(ctx, event); err != nil {
		return domain.Evidence{}, err
	}
	if err := uc.Queue.Enqueue(evidenceID); err != nil {
		return domain.Evidence{}, err
	}
	evidence.AnalysisStatus = domain.AnalysisPending
	return *evidence, nil
}
