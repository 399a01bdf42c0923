package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"truthsig/internal/domain"
)

// ledgerStub chains events in memory exactly the way the persistent
// repository does: sequential seq, payload hash, predecessor link and
// chained event hash.
type ledgerStub struct {
	events []domain.CustodyEvent
}

func (s *ledgerStub) Append(_ context.Context, event domain.CustodyEvent) (domain.CustodyEvent, error) {
	event.ID = fmt.Sprintf("evt-%d", len(s.events)+1)
	event.Seq = int64(len(s.events) + 1)
	event.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(event.Seq) * time.Second)
	if event.Payload == nil {
		event.Payload = []byte("{}")
	}
	event.PayloadHash = domain.SHA256Hex(event.Payload)
	event.PrevEventHash = domain.CustodyGenesisHash
	if len(s.events) > 0 {
		event.PrevEventHash = s.events[len(s.events)-1].EventHash
	}
	hash, err := domain.ComputeEventHash(event)
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	event.EventHash = hash
	s.events = append(s.events, event)
	return event, nil
}

func (s *ledgerStub) ListByCase(_ context.Context, caseID string) ([]domain.CustodyEvent, error) {
	out := make([]domain.CustodyEvent, 0, len(s.events))
	for _, event := range s.events {
		if event.CaseID == caseID {
			out = append(out, event)
		}
	}
	return out, nil
}

func seedChain(t *testing.T, ledger *ledgerStub, caseID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		event, err := NewCustodyEvent(caseID, domain.EventEvidenceSubmitted, "uploader", map[string]any{
			"evidence_id": fmt.Sprintf("ev-%d", i),
		})
		if err != nil {
			t.Fatalf("build event: %v", err)
		}
		if _, err := ledger.Append(context.Background(), event); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
}

func TestVerifyCaseCustodyChain_Valid(t *testing.T) {
	ledger := &ledgerStub{}
	seedChain(t, ledger, "case-1", 5)

	if err := VerifyCaseCustodyChain(context.Background(), ledger, "case-1"); err != nil {
		t.Fatalf("expected valid chain, got %v", err)
	}
}

func TestVerifyCaseCustodyChain_EmptyChainIsValid(t *testing.T) {
	ledger := &ledgerStub{}
	if err := VerifyCaseCustodyChain(context.Background(), ledger, "case-none"); err != nil {
		t.Fatalf("empty chain must verify, got %v", err)
	}
}

func TestVerifyCaseCustodyChain_DetectsPayloadMutation(t *testing.T) {
	ledger := &ledgerStub{}
	seedChain(t, ledger, "case-1", 4)

	// Flip one byte in the payload of the second event.
	ledger.events[1].Payload[0] ^= 0x01

	err := VerifyCaseCustodyChain(context.Background(), ledger, "case-1")
	if !errors.Is(err, domain.ErrChainIntegrityViolation) {
		t.Fatalf("expected chain integrity violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "seq 2") {
		t.Fatalf("violation should name the failing event, got %q", err)
	}
}

func TestVerifyCaseCustodyChain_DetectsRewrittenEventHash(t *testing.T) {
	ledger := &ledgerStub{}
	seedChain(t, ledger, "case-1", 3)

	ledger.events[2].EventHash = domain.SHA256Hex([]byte("forged"))

	err := VerifyCaseCustodyChain(context.Background(), ledger, "case-1")
	if !errors.Is(err, domain.ErrChainIntegrityViolation) {
		t.Fatalf("expected chain integrity violation, got %v", err)
	}
}

func TestVerifyCaseCustodyChain_DetectsBrokenPredecessorLink(t *testing.T) {
	ledger := &ledgerStub{}
	seedChain(t, ledger, "case-1", 3)

	ledger.events[1].PrevEventHash = domain.CustodyGenesisHash

	err := VerifyCaseCustodyChain(context.Background(), ledger, "case-1")
	if !errors.Is(err, domain.ErrChainIntegrityViolation) {
		t.Fatalf("expected chain integrity violation, got %v", err)
	}
}

func TestVerifyCaseCustodyChain_DetectsSeqGap(t *testing.T) {
	ledger := &ledgerStub{}
	seedChain(t, ledger, "case-1", 4)

	// Drop an interior event; the walk must notice the gap.
	ledger.events = append(ledger.events[:1], ledger.events[2:]...)

	err := VerifyCaseCustodyChain(context.Background(), ledger, "case-1")
	if !errors.Is(err, domain.ErrChainIntegrityViolation) {
		t.Fatalf("expected chain integrity violation, got %v", err)
	}
}
