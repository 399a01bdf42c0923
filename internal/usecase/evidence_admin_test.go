package usecase

import (
	"context"
	"errors"
	"testing"

	"truthsig/internal/domain"
)

func newAdminFixture() (*EvidenceAdmin, *evidenceRepoStub, *ledgerStub, *queueStub) {
	evidence := newEvidenceRepoStub()
	ledger := &ledgerStub{}
	queue := &queueStub{}
	return &EvidenceAdmin{Evidence: evidence, Ledger: ledger, Queue: queue}, evidence, ledger, queue
}

func TestEvidenceAdmin_DeleteCancelsAndRecords(t *testing.T) {
	uc, evidence, ledger, queue := newAdminFixture()
	evidence.items["ev-1"] = domain.Evidence{ID: "ev-1", CaseID: "case-1", AnalysisStatus: domain.AnalysisRunning}

	if err := uc.Delete(context.Background(), "ev-1", "admin"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(queue.cancelled) != 1 || queue.cancelled[0] != "ev-1" {
		t.Fatalf("expected in-flight job cancel, got %v", queue.cancelled)
	}
	if _, ok := evidence.items["ev-1"]; ok {
		t.Fatal("record must be gone")
	}
	if len(ledger.events) != 1 || ledger.events[0].EventType != domain.EventEvidenceRemoved {
		t.Fatalf("expected EVIDENCE_REMOVED event, got %v", ledger.events)
	}
}

func TestEvidenceAdmin_DeleteUnknown(t *testing.T) {
	uc, _, _, _ := newAdminFixture()
	if err := uc.Delete(context.Background(), "missing", "admin"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEvidenceAdmin_ReanalyzeFailedEvidence(t *testing.T) {
	uc, evidence, ledger, queue := newAdminFixture()
	evidence.items["ev-1"] = domain.Evidence{
		ID: "ev-1", CaseID: "case-1",
		AnalysisStatus: domain.AnalysisFailed, FailureCode: "ANALYSIS_TIMEOUT", Retryable: true,
	}

	out, err := uc.Reanalyze(context.Background(), "ev-1", "admin")
	if err != nil {
		t.Fatalf("reanalyze: %v", err)
	}
	if out.AnalysisStatus != domain.AnalysisPending {
		t.Fatalf("expected PENDING, got %s", out.AnalysisStatus)
	}
	if got := evidence.items["ev-1"]; got.AnalysisStatus != domain.AnalysisPending || got.FailureCode != "" {
		t.Fatalf("stored record not reset: %+v", got)
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected re-enqueue, got %v", queue.enqueued)
	}
	if len(ledger.events) != 1 || ledger.events[0].EventType != domain.EventEvidenceReclassified {
		t.Fatalf("expected EVIDENCE_RECLASSIFIED event, got %v", ledger.events)
	}
}

func TestEvidenceAdmin_ReanalyzeRejectsInFlight(t *testing.T) {
	uc, evidence, _, queue := newAdminFixture()
	evidence.items["ev-1"] = domain.Evidence{ID: "ev-1", CaseID: "case-1", AnalysisStatus: domain.AnalysisRunning}
	queue.running = map[string]bool{"ev-1": true}

	_, err := uc.Reanalyze(context.Background(), "ev-1", "admin")
	if !errors.Is(err, domain.ErrAnalysisInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("rejected reanalyze must not enqueue")
	}
}

func TestEvidenceAdmin_ReanalyzeRecoversOrphanedRecord(t *testing.T) {
	for _, status := range []domain.AnalysisStatus{domain.AnalysisPending, domain.AnalysisRunning} {
		uc, evidence, ledger, queue := newAdminFixture()
		evidence.items["ev-1"] = domain.Evidence{ID: "ev-1", CaseID: "case-1", AnalysisStatus: status}

		out, err := uc.Reanalyze(context.Background(), "ev-1", "admin")
		if err != nil {
			t.Fatalf("reanalyze orphaned %s record: %v", status, err)
		}
		if out.AnalysisStatus != domain.AnalysisPending {
			t.Fatalf("expected PENDING, got %s", out.AnalysisStatus)
		}
		if len(queue.enqueued) != 1 || queue.enqueued[0] != "ev-1" {
			t.Fatalf("expected re-enqueue for %s record, got %v", status, queue.enqueued)
		}
		if len(ledger.events) != 1 || ledger.events[0].EventType != domain.EventEvidenceReclassified {
			t.Fatalf("expected EVIDENCE_RECLASSIFIED event, got %v", ledger.events)
		}
	}
}
