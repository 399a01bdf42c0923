package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"truthsig/internal/domain"
	"truthsig/internal/forensic"
	"truthsig/internal/manifest"
)

// AnalyzeEvidence is the asynchronous analysis job body. The manifest
// verifier and the forensic pipeline run concurrently against the same
// immutable blob and are joined before scoring. The final trust score,
// analysis results, status flip and completion ledger event commit
// atomically through AnalysisRepository.Complete.
type AnalyzeEvidence struct {
	Evidence EvidenceRepository
	Analysis AnalysisRepository
	Ledger   CustodyEventRepository
	Blobs    BlobStore

	Verifier *manifest.Verifier
	ELA      forensic.ELAConfig
	Video    *forensic.VideoAnalyzer

	Clock   Clock
	Timeout time.Duration
}

const analysisActor = "analysis-engine"

// Run executes one analysis job. Failures are recorded on the evidence
// record, never returned to the original uploader: the upload already
// completed when the job was enqueued.
func (uc *AnalyzeEvidence) Run(ctx context.Context, evidenceID string) error {
	if uc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.Timeout)
		defer cancel()
	}

	evidence, err := uc.Evidence.GetByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted between enqueue and start; nothing to analyze.
			return nil
		}
		return err
	}

	if err := uc.start(ctx, *evidence); err != nil {
		return err
	}

	manifestResult, forensicResult, artifacts, err := uc.analyze(ctx, *evidence)
	if err != nil {
		return uc.recordFailure(ctx, *evidence, err)
	}

	score := Score(manifestResult, forensicResult)
	score.EvidenceID = evidence.ID
	provenance := domain.DeriveProvenanceState(manifestResult, forensicResult)

	if _, err := uc.Analysis.Complete(ctx, AnalysisCompletion{
		EvidenceID: evidence.ID,
		Actor:      analysisActor,
		Manifest:   manifestResult,
		Forensic:   forensicResult,
		Provenance: provenance,
		Score:      score,
		Artifacts:  artifacts,
	}); err != nil {
		return uc.recordFailure(ctx, *evidence, err)
	}
	return nil
}

func (uc *AnalyzeEvidence) start(ctx context.Context, evidence domain.Evidence) error {
	if err := uc.Evidence.SetStatus(ctx, evidence.ID, domain.AnalysisRunning); err != nil {
		return err
	}
	event, err := NewCustodyEvent(evidence.CaseID, domain.EventAnalysisStarted, analysisActor, map[string]any{
		"evidence_id": evidence.ID,
		"digest":      evidence.Digest,
	})
	if err != nil {
		return err
	}
	_, err = uc.Ledger.Append(ctx, event)
	return err
}

func (uc *AnalyzeEvidence) analyze(ctx context.Context, evidence domain.Evidence) (domain.ManifestResult, domain.ForensicResult, []domain.ArtifactRef, error) {
	blob, err := uc.Blobs.Open(ctx, evidence.Digest)
	if err != nil {
		return domain.ManifestResult{}, domain.ForensicResult{}, nil, err
	}
	data, err := io.ReadAll(blob)
	blob.Close()
	if err != nil {
		return domain.ManifestResult{}, domain.ForensicResult{}, nil, err
	}

	var (
		manifestResult domain.ManifestResult
		forensicResult domain.ForensicResult
		artifacts      []domain.ArtifactRef
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		manifestResult = uc.Verifier.Verify(data, evidence.MediaKind)
		return nil
	})
	g.Go(func() error {
		var err error
		forensicResult, artifacts, err = uc.runForensics(gctx, evidence, data)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ManifestResult{}, domain.ForensicResult{}, nil, err
	}
	if ctx.Err() != nil {
		return domain.ManifestResult{}, domain.ForensicResult{}, nil, ctx.Err()
	}
	return manifestResult, forensicResult, artifacts, nil
}

func (uc *AnalyzeEvidence) runForensics(ctx context.Context, evidence domain.Evidence, data []byte) (domain.ForensicResult, []domain.ArtifactRef, error) {
	switch evidence.MediaKind {
	case domain.MediaKindImage:
		analysis, err := forensic.AnalyzeImage(data, uc.ELA)
		if err != nil {
			return domain.ForensicResult{}, nil, err
		}
		heatmapDigest, err := uc.Blobs.PutBytes(ctx, analysis.Heatmap)
		if err != nil {
			return domain.ForensicResult{}, nil, err
		}
		heatmap := domain.ArtifactRef{Kind: domain.ArtifactHeatmap, Digest: heatmapDigest}
		return domain.ForensicResult{
			Kind: domain.MediaKindImage,
			Image: &domain.ImageFindings{
				AnomalyScore: analysis.AnomalyScore,
				Suspicious:   analysis.Suspicious,
				Heatmap:      heatmap,
			},
		}, []domain.ArtifactRef{heatmap}, nil

	case domain.MediaKindVideo:
		path, err := uc.Blobs.Path(evidence.Digest)
		if err != nil {
			return domain.ForensicResult{}, nil, err
		}
		analysis, err := uc.Video.Analyze(ctx, path)
		if err != nil {
			return domain.ForensicResult{}, nil, err
		}
		var refs []domain.ArtifactRef
		for _, frame := range analysis.Frames {
			thumbDigest, err := uc.Blobs.PutBytes(ctx, frame.Thumbnail)
			if err != nil {
				return domain.ForensicResult{}, nil, err
			}
			refs = append(refs, domain.ArtifactRef{Kind: domain.ArtifactFrame, Digest: thumbDigest, Index: frame.Index})
			heatDigest, err := uc.Blobs.PutBytes(ctx, frame.Heatmap)
			if err != nil {
				return domain.ForensicResult{}, nil, err
			}
			refs = append(refs, domain.ArtifactRef{Kind: domain.ArtifactFrameHeatmap, Digest: heatDigest, Index: frame.Index})
		}
		return domain.ForensicResult{
			Kind: domain.MediaKindVideo,
			Video: &domain.VideoFindings{
				SampledFrames: analysis.SampledFrames,
				AverageScore:  analysis.AverageScore,
				FlaggedFrames: analysis.FlaggedFrames,
				Artifacts:     refs,
			},
		}, refs, nil
	}
	return domain.ForensicResult{}, nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaKind, evidence.MediaKind)
}

// recordFailure marks the evidence FAILED and appends the failure to the
// ledger. Timeouts are retryable; internal faults are not. Cancellation
// from evidence deletion is not a failure at all.
func (uc *AnalyzeEvidence) recordFailure(ctx context.Context, evidence domain.Evidence, cause error) error {
	// The job context may already be dead; the failure record must still
	// be written.
	bg := context.WithoutCancel(ctx)

	code := "ANALYSIS_FAILURE"
	retryable := false
	switch {
	case errors.Is(cause, context.Canceled):
		log.Printf("analysis cancelled for evidence %s", evidence.ID)
		return nil
	case errors.Is(cause, context.DeadlineExceeded), errors.Is(cause, domain.ErrAnalysisTimeout):
		code = "ANALYSIS_TIMEOUT"
		retryable = true
	}

	if err := uc.Evidence.MarkFailed(bg, evidence.ID, code, retryable); err != nil {
		return errors.Join(cause, err)
	}
	event, err := NewCustodyEvent(evidence.CaseID, domain.EventAnalysisFailed, analysisActor, map[string]any{
		"evidence_id": evidence.ID,
		"code":        code,
		"retryable":   retryable,
		"error":       cause.Error(),
	})
	if err != nil {
		return errors.Join(cause, err)
	}
	if _, err := uc.Ledger.Append(bg, event); err != nil {
		return errors.Join(cause, err)
	}
	log.Printf("analysis failed for evidence %s: %s: %v", evidence.ID, code, cause)
	return cause
}
