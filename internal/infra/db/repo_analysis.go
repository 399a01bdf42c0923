package db

import (
	"context"
	"encoding/json"
	"time"

	"truthsig/internal/domain"
	"truthsig/internal/usecase"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnalysisRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalysisRepository(db *gorm.DB, now func() time.Time) *AnalysisRepository {
	if now == nil {
		now = time.Now
	}
	return &AnalysisRepository{db: db, now: now}
}

// Complete commits the outcome of one analysis run in a single
// transaction: the new trust score revision, the result blobs, the
// artifact index, the evidence status flip and the completion ledger
// event. A crash mid-way leaves the evidence RUNNING with no partial
// results visible.
func (r *AnalysisRepository) Complete(ctx context.Context, completion usecase.AnalysisCompletion) (domain.TrustScore, error) {
	if r.db == nil {
		return domain.TrustScore{}, errDBUnavailable
	}

	manifestJSON, err := json.Marshal(completion.Manifest)
	if err != nil {
		return domain.TrustScore{}, err
	}
	forensicJSON, err := json.Marshal(completion.Forensic)
	if err != nil {
		return domain.TrustScore{}, err
	}
	reasonsJSON, err := json.Marshal(completion.Score.TopReasons)
	if err != nil {
		return domain.TrustScore{}, err
	}

	now := r.now().UTC()
	score := completion.Score
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	score.EvidenceID = completion.EvidenceID
	score.CreatedAt = now

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var revision int
		if err := tx.Model(&TrustScoreModel{}).
			Where("evidence_id = ?", completion.EvidenceID).
			Select("COALESCE(MAX(revision), 0)").
			Scan(&revision).Error; err != nil {
			return err
		}

		score.Version = revision + 1
		scoreModel := TrustScoreModel{
			ID:             score.ID,
			EvidenceID:     score.EvidenceID,
			EngineVersion:  usecase.ScoringEngineVersion,
			Revision:       score.Version,
			Score:          score.Score,
			Band:           string(score.Band),
			Rationale:      score.Rationale,
			TopReasonsJSON: reasonsJSON,
			CreatedAt:      now,
		}
		if err := tx.Create(&scoreModel).Error; err != nil {
			return err
		}

		resultModel := AnalysisResultModel{
			ID:           uuid.NewString(),
			EvidenceID:   completion.EvidenceID,
			TrustScoreID: score.ID,
			ManifestJSON: manifestJSON,
			ForensicJSON: forensicJSON,
			CreatedAt:    now,
		}
		if err := tx.Create(&resultModel).Error; err != nil {
			return err
		}

		for _, ref := range completion.Artifacts {
			artifact := ArtifactModel{
				EvidenceID: completion.EvidenceID,
				Kind:       string(ref.Kind),
				FrameIndex: ref.Index,
				Digest:     ref.Digest,
				CreatedAt:  now,
			}
			if err := tx.Clauses(onConflictUpdateDigest()).Create(&artifact).Error; err != nil {
				return err
			}
		}

		var evidence EvidenceModel
		if err := tx.Take(&evidence, "id = ?", completion.EvidenceID).Error; err != nil {
			return notFound(err, "evidence", completion.EvidenceID)
		}
		if err := tx.Model(&EvidenceModel{}).
			Where("id = ?", completion.EvidenceID).
			Updates(map[string]any{
				"analysis_status":  string(domain.AnalysisDone),
				"provenance_state": string(completion.Provenance),
				"trust_score_id":   score.ID,
				"failure_code":     nil,
				"retryable":        false,
			}).Error; err != nil {
			return err
		}

		event, err := usecase.NewCustodyEvent(evidence.CaseID, domain.EventAnalysisCompleted, completion.Actor, map[string]any{
			"evidence_id":      completion.EvidenceID,
			"trust_score_id":   score.ID,
			"score":            score.Score,
			"band":             string(score.Band),
			"provenance_state": string(completion.Provenance),
		})
		if err != nil {
			return err
		}
		_, err = appendEventTx(ctx, tx, event, r.now)
		return err
	})
	if err != nil {
		return domain.TrustScore{}, err
	}
	return score, nil
}

func (r *AnalysisRepository) GetLatestResults(ctx context.Context, evidenceID string) (*domain.ManifestResult, *domain.ForensicResult, error) {
	if r.db == nil {
		return nil, nil, errDBUnavailable
	}
	var model AnalysisResultModel
	if err := r.db.WithContext(ctx).
		Where("evidence_id = ?", evidenceID).
		Order("created_at DESC").
		Take(&model).Error; err != nil {
		return nil, nil, notFound(err, "analysis results for evidence", evidenceID)
	}
	var manifest domain.ManifestResult
	if err := json.Unmarshal(model.ManifestJSON, &manifest); err != nil {
		return nil, nil, err
	}
	var forensic domain.ForensicResult
	if err := json.Unmarshal(model.ForensicJSON, &forensic); err != nil {
		return nil, nil, err
	}
	return &manifest, &forensic, nil
}
