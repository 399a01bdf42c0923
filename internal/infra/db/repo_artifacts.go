package db

import (
	"context"

	"truthsig/internal/domain"

	"gorm.io/gorm"
)

// ArtifactRepository is read-only: rows are written by
// AnalysisRepository.Complete inside the completion transaction.
type ArtifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func (r *ArtifactRepository) Get(ctx context.Context, evidenceID string, kind domain.ArtifactKind, index int) (*domain.ArtifactRef, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ArtifactModel
	if err := r.db.WithContext(ctx).
		Take(&model, "evidence_id = ? AND kind = ? AND frame_index = ?", evidenceID, string(kind), index).Error; err != nil {
		return nil, notFound(err, "artifact for evidence", evidenceID)
	}
	return &domain.ArtifactRef{
		Kind:   domain.ArtifactKind(model.Kind),
		Digest: model.Digest,
		Index:  model.FrameIndex,
	}, nil
}
