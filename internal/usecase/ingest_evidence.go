package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"truthsig/internal/domain"
	"truthsig/internal/forensic"
)

const sniffLen = 3072

// IngestEvidence accepts a byte stream for a case: digest, sniff the
// media kind, store the blob, create a PENDING evidence record and
// enqueue exactly one analysis job. Upload is idempotent per
// (case, digest): re-uploading identical bytes returns the existing
// record and only leaves a duplicate-detected trace in the ledger.
type IngestEvidence struct {
	Cases    CaseRepository
	Evidence EvidenceRepository
	Ledger   CustodyEventRepository
	Blobs    BlobStore
	Queue    AnalysisQueue
	Clock    Clock
}

type IngestRequest struct {
	CaseID   string
	Filename string
	Actor    string
	Content  io.Reader
}

type IngestResult struct {
	Evidence  domain.Evidence
	Duplicate bool
}

func (uc *IngestEvidence) Execute(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if req.CaseID == "" || req.Content == nil {
		return IngestResult{}, fmt.Errorf("%w: case id and content required", domain.ErrMalformedUpload)
	}
	if _, err := uc.Cases.GetByID(ctx, req.CaseID); err != nil {
		return IngestResult{}, err
	}

	prefix := make([]byte, sniffLen)
	n, err := io.ReadFull(req.Content, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return IngestResult{}, fmt.Errorf("%w: %w", domain.ErrMalformedUpload, err)
	}
	prefix = prefix[:n]
	if n == 0 {
		return IngestResult{}, fmt.Errorf("%w: empty upload", domain.ErrMalformedUpload)
	}

	kind, mime, err := forensic.DetectMediaKind(prefix)
	if err != nil {
		return IngestResult{}, err
	}

	digest, size, err := uc.Blobs.Put(ctx, io.MultiReader(bytes.NewReader(prefix), req.Content))
	if err != nil {
		return IngestResult{}, fmt.Errorf("store blob: %w", err)
	}

	if existing, err := uc.Evidence.GetByCaseDigest(ctx, req.CaseID, digest); err == nil && existing != nil {
		event, err := NewCustodyEvent(req.CaseID, domain.EventDuplicateDetected, req.Actor, map[string]any{
			"evidence_id": existing.ID,
			"digest":      digest,
			"filename":    req.Filename,
		})
		if err != nil {
			return IngestResult{}, err
		}
		if _, err := uc.Ledger.Append(ctx, event); err != nil {
			return IngestResult{}, err
		}
		return IngestResult{Evidence: *existing, Duplicate: true}, nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return IngestResult{}, err
	}

	evidence := domain.Evidence{
		ID:             uuid.NewString(),
		CaseID:         req.CaseID,
		Filename:       req.Filename,
		Digest:         digest,
		SizeBytes:      size,
		MediaKind:      kind,
		AnalysisStatus: domain.AnalysisPending,
		CreatedAt:      uc.Clock.now().UTC(),
	}
	if err := uc.Evidence.Create(ctx, evidence); err != nil {
		return IngestResult{}, err
	}

	event, err := NewCustodyEvent(req.CaseID, domain.EventEvidenceSubmitted, req.Actor, map[string]any{
		"evidence_id": evidence.ID,
		"digest":      digest,
		"filename":    req.Filename,
		"media_kind":  string(kind),
		"mime":        mime,
		"size_bytes":  size,
	})
	if err != nil {
		return IngestResult{}, err
	}
	if _, err := uc.Ledger.Append(ctx, event); err != nil {
		return IngestResult{}, err
	}

	if err := uc.Queue.Enqueue(evidence.ID); err != nil {
		// Leave the record FAILED and retryable so a reanalyze can pick
		// it up; a PENDING record with no queue entry would be stuck.
		if markErr := uc.Evidence.MarkFailed(ctx, evidence.ID, "ANALYSIS_FAILURE", true); markErr != nil {
			return IngestResult{}, errors.Join(fmt.Errorf("enqueue analysis: %w", err), markErr)
		}
		return IngestResult{}, fmt.Errorf("enqueue analysis: %w", err)
	}
	return IngestResult{Evidence: evidence}, nil
}
