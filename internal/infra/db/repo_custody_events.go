package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"truthsig/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustodyEventRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCustodyEventRepository(db *gorm.DB, now func() time.Time) *CustodyEventRepository {
	if now == nil {
		now = time.Now
	}
	return &CustodyEventRepository{db: db, now: now}
}

// Append assigns the per-case sequence number, links the event to its
// predecessor's hash and writes the chained hash, all in one
// transaction. The seq row is locked FOR UPDATE so two concurrent
// appends on the same case serialize instead of forking the chain.
func (r *CustodyEventRepository) Append(ctx context.Context, event domain.CustodyEvent) (domain.CustodyEvent, error) {
	if r.db == nil {
		return domain.CustodyEvent{}, errDBUnavailable
	}
	var out domain.CustodyEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appended, err := appendEventTx(ctx, tx, event, r.now)
		if err != nil {
			return err
		}
		out = appended
		return nil
	})
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	return out, nil
}

func (r *CustodyEventRepository) ListByCase(ctx context.Context, caseID string) ([]domain.CustodyEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CustodyEventModel
	if err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CustodyEvent, 0, len(models))
	for _, model := range models {
		out = append(out, custodyEventFromModel(model))
	}
	return out, nil
}

// appendEventTx is the shared chain-append body. AnalysisRepository
// reuses it so a completion event commits in the same transaction as the
// score it records.
func appendEventTx(ctx context.Context, tx *gorm.DB, event domain.CustodyEvent, now func() time.Time) (domain.CustodyEvent, error) {
	if event.CaseID == "" {
		return domain.CustodyEvent{}, errors.New("case_id is required")
	}
	if event.EventType == "" {
		return domain.CustodyEvent{}, errors.New("event_type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Payload == nil {
		event.Payload = []byte("{}")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now()
	}
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)
	event.PayloadHash = domain.SHA256Hex(event.Payload)

	seq, prevHash, err := nextCustodySeq(ctx, tx, event.CaseID)
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	event.Seq = seq
	event.PrevEventHash = prevHash

	eventHash, err := domain.ComputeEventHash(event)
	if err != nil {
		return domain.CustodyEvent{}, err
	}
	event.EventHash = eventHash

	model := custodyEventModelFromDomain(event)
	if err := tx.Create(&model).Error; err != nil {
		return domain.CustodyEvent{}, err
	}
	return event, nil
}

func nextCustodySeq(ctx context.Context, tx *gorm.DB, caseID string) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO case_custody_seq (case_id, seq) VALUES (?, 0) ON CONFLICT (case_id) DO NOTHING",
		caseID,
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM case_custody_seq WHERE case_id = ? FOR UPDATE",
		caseID,
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE case_custody_seq SET seq = ? WHERE case_id = ?",
		nextSeq,
		caseID,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := domain.CustodyGenesisHash
	if currentSeq > 0 {
		var prev CustodyEventModel
		if err := tx.WithContext(ctx).
			Where("case_id = ? AND seq = ?", caseID, currentSeq).
			Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.EventHash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing previous event hash for case %s", caseID)
	}
	return nextSeq, prevHash, nil
}

func custodyEventModelFromDomain(event domain.CustodyEvent) CustodyEventModel {
	return CustodyEventModel{
		ID:            event.ID,
		CaseID:        event.CaseID,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		Actor:         event.Actor,
		PayloadJSON:   event.Payload,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC(),
	}
}

func custodyEventFromModel(model CustodyEventModel) domain.CustodyEvent {
	return domain.CustodyEvent{
		ID:            model.ID,
		CaseID:        model.CaseID,
		Seq:           model.Seq,
		EventType:     domain.CustodyEventType(model.EventType),
		Actor:         model.Actor,
		Payload:       model.PayloadJSON,
		PayloadHash:   model.PayloadHash,
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
		CreatedAt:     model.CreatedAt.UTC(),
	}
}
