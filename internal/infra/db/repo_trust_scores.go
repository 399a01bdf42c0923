package db

import (
	"context"
	"encoding/json"

	"truthsig/internal/domain"

	"gorm.io/gorm"
)

type TrustScoreRepository struct {
	db *gorm.DB
}

func NewTrustScoreRepository(db *gorm.DB) *TrustScoreRepository {
	return &TrustScoreRepository{db: db}
}

func (r *TrustScoreRepository) GetByID(ctx context.Context, scoreID string) (*domain.TrustScore, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TrustScoreModel
	if err := r.db.WithContext(ctx).Take(&model, "id = ?", scoreID).Error; err != nil {
		return nil, notFound(err, "trust score", scoreID)
	}
	return trustScoreFromModel(model)
}

func (r *TrustScoreRepository) GetLatest(ctx context.Context, evidenceID string) (*domain.TrustScore, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TrustScoreModel
	if err := r.db.WithContext(ctx).
		Where("evidence_id = ?", evidenceID).
		Order("revision DESC").
		Take(&model).Error; err != nil {
		return nil, notFound(err, "trust score for evidence", evidenceID)
	}
	return trustScoreFromModel(model)
}

func trustScoreFromModel(model TrustScoreModel) (*domain.TrustScore, error) {
	var reasons []domain.Reason
	if err := json.Unmarshal(model.TopReasonsJSON, &reasons); err != nil {
		return nil, err
	}
	return &domain.TrustScore{
		ID:         model.ID,
		EvidenceID: model.EvidenceID,
		Version:    model.Revision,
		Score:      model.Score,
		Band:       domain.TrustBand(model.Band),
		Rationale:  model.Rationale,
		TopReasons: reasons,
		CreatedAt:  model.CreatedAt.UTC(),
	}, nil
}
