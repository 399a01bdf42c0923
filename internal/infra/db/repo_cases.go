package db

import (
	"context"

	"truthsig/internal/domain"

	"gorm.io/gorm"
)

type CaseRepository struct {
	db *gorm.DB
}

func NewCaseRepository(db *gorm.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) Create(ctx context.Context, c domain.Case) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := CaseModel{
		ID:        c.ID,
		Title:     c.Title,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CaseRepository) GetByID(ctx context.Context, caseID string) (*domain.Case, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CaseModel
	if err := r.db.WithContext(ctx).Take(&model, "id = ?", caseID).Error; err != nil {
		return nil, notFound(err, "case", caseID)
	}
	c := caseFromModel(model)
	return &c, nil
}

func (r *CaseRepository) List(ctx context.Context) ([]domain.Case, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CaseModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Case, 0, len(models))
	for _, model := range models {
		out = append(out, caseFromModel(model))
	}
	return out, nil
}

func caseFromModel(model CaseModel) domain.Case {
	return domain.Case{
		ID:        model.ID,
		Title:     model.Title,
		Status:    domain.CaseStatus(model.Status),
		CreatedAt: model.CreatedAt.UTC(),
	}
}
