package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"truthsig/internal/domain"
)

// VerifyCaseCustodyChain re-walks a case's custody chain and recomputes
// every hash. It halts at the first divergence and reports the event id
// where the chain breaks; it never repairs anything.
func VerifyCaseCustodyChain(ctx context.Context, repo CustodyEventRepository, caseID string) error {
	if repo == nil {
		return errors.New("custody repository required")
	}
	events, err := repo.ListByCase(ctx, caseID)
	if err != nil {
		return err
	}

	expectedSeq := int64(1)
	prevHash := domain.CustodyGenesisHash
	for _, event := range events {
		if event.CaseID != caseID {
			return chainViolation(event, "case mismatch")
		}
		if event.Seq != expectedSeq {
			return chainViolation(event, fmt.Sprintf("expected seq %d", expectedSeq))
		}
		if event.PrevEventHash != prevHash {
			return chainViolation(event, "prev hash mismatch")
		}
		if domain.SHA256Hex(event.Payload) != event.PayloadHash {
			return chainViolation(event, "payload hash mismatch")
		}
		if event.CreatedAt.IsZero() {
			return chainViolation(event, "missing created_at")
		}
		expectedHash, err := domain.ComputeEventHash(event)
		if err != nil {
			return chainViolation(event, err.Error())
		}
		if expectedHash != event.EventHash {
			return chainViolation(event, "event hash mismatch")
		}
		prevHash = event.EventHash
		expectedSeq++
	}
	return nil
}

func chainViolation(event domain.CustodyEvent, detail string) error {
	return fmt.Errorf("%w: event %s (seq %d): %s",
		domain.ErrChainIntegrityViolation, event.ID, event.Seq, detail)
}

// NewCustodyEvent assembles an unhashed event; the repository assigns
// seq, the predecessor hash and the chained hash on append.
func NewCustodyEvent(caseID string, eventType domain.CustodyEventType, actor string, payload map[string]any) (domain.CustodyEvent, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	// encoding/json sorts map keys, so the payload bytes are stable.
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.CustodyEvent{}, fmt.Errorf("encode custody payload: %w", err)
	}
	return domain.CustodyEvent{
		CaseID:    caseID,
		EventType: eventType,
		Actor:     actor,
		Payload:   raw,
	}, nil
}
