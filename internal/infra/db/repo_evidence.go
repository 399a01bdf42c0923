package db

import (
	"context"
	"fmt"

	"truthsig/internal/domain"

	"gorm.io/gorm"
)

type EvidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) Create(ctx context.Context, e domain.Evidence) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := evidenceModelFromDomain(e)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *EvidenceRepository) GetByID(ctx context.Context, evidenceID string) (*domain.Evidence, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model EvidenceModel
	if err := r.db.WithContext(ctx).Take(&model, "id = ?", evidenceID).Error; err != nil {
		return nil, notFound(err, "evidence", evidenceID)
	}
	e := evidenceFromModel(model)
	return &e, nil
}

func (r *EvidenceRepository) GetByCaseDigest(ctx context.Context, caseID, digest string) (*domain.Evidence, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model EvidenceModel
	if err := r.db.WithContext(ctx).
		Take(&model, "case_id = ? AND digest = ?", caseID, digest).Error; err != nil {
		return nil, notFound(err, "evidence digest", digest)
	}
	e := evidenceFromModel(model)
	return &e, nil
}

func (r *EvidenceRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Evidence, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []EvidenceModel
	if err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Evidence, 0, len(models))
	for _, model := range models {
		out = append(out, evidenceFromModel(model))
	}
	return out, nil
}

func (r *EvidenceRepository) SetStatus(ctx context.Context, evidenceID string, status domain.AnalysisStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&EvidenceModel{}).
		Where("id = ?", evidenceID).
		Updates(map[string]any{
			"analysis_status": string(status),
			"failure_code":    nil,
			"retryable":       false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: evidence %s", domain.ErrNotFound, evidenceID)
	}
	return nil
}

func (r *EvidenceRepository) MarkFailed(ctx context.Context, evidenceID, failureCode string, retryable bool) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&EvidenceModel{}).
		Where("id = ?", evidenceID).
		Updates(map[string]any{
			"analysis_status": string(domain.AnalysisFailed),
			"failure_code":    failureCode,
			"retryable":       retryable,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: evidence %s", domain.ErrNotFound, evidenceID)
	}
	return nil
}

func (r *EvidenceRepository) Delete(ctx context.Context, evidenceID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).Delete(&EvidenceModel{}, "id = ?", evidenceID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: evidence %s", domain.ErrNotFound, evidenceID)
	}
	return nil
}

func evidenceModelFromDomain(e domain.Evidence) EvidenceModel {
	return EvidenceModel{
		ID:              e.ID,
		CaseID:          e.CaseID,
		Filename:        e.Filename,
		Digest:          e.Digest,
		SizeBytes:       e.SizeBytes,
		MediaKind:       string(e.MediaKind),
		AnalysisStatus:  string(e.AnalysisStatus),
		Retryable:       e.Retryable,
		FailureCode:     stringPtrIfNotEmpty(e.FailureCode),
		ProvenanceState: stringPtrIfNotEmpty(string(e.ProvenanceState)),
		TrustScoreID:    stringPtrIfNotEmpty(e.TrustScoreID),
		CreatedAt:       e.CreatedAt.UTC(),
	}
}

func evidenceFromModel(model EvidenceModel) domain.Evidence {
	return domain.Evidence{
		ID:              model.ID,
		CaseID:          model.CaseID,
		Filename:        model.Filename,
		Digest:          model.Digest,
		SizeBytes:       model.SizeBytes,
		MediaKind:       domain.MediaKind(model.MediaKind),
		AnalysisStatus:  domain.AnalysisStatus(model.AnalysisStatus),
		Retryable:       model.Retryable,
		FailureCode:     stringValue(model.FailureCode),
		ProvenanceState: domain.ProvenanceState(stringValue(model.ProvenanceState)),
		TrustScoreID:    stringValue(model.TrustScoreID),
		CreatedAt:       model.CreatedAt.UTC(),
	}
}
