package usecase

import (
	"context"
	"io"
	"time"

	"truthsig/internal/domain"
)

type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

type CaseRepository interface {
	Create(ctx context.Context, c domain.Case) error
	GetByID(ctx context.Context, caseID string) (*domain.Case, error)
	List(ctx context.Context) ([]domain.Case, error)
}

type EvidenceRepository interface {
	Create(ctx context.Context, e domain.Evidence) error
	GetByID(ctx context.Context, evidenceID string) (*domain.Evidence, error)
	GetByCaseDigest(ctx context.Context, caseID, digest string) (*domain.Evidence, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.Evidence, error)
	SetStatus(ctx context.Context, evidenceID string, status domain.AnalysisStatus) error
	MarkFailed(ctx context.Context, evidenceID, failureCode string, retryable bool) error
	Delete(ctx context.Context, evidenceID string) error
}

// AnalysisCompletion is everything a finished analysis run must persist.
// The repository commits it atomically: either the trust score version,
// the results, the status flip and the completion ledger event are all
// durable, or none of them are.
type AnalysisCompletion struct {
	EvidenceID string
	Actor      string
	Manifest   domain.ManifestResult
	Forensic   domain.ForensicResult
	Provenance domain.ProvenanceState
	Score      domain.TrustScore
	Artifacts  []domain.ArtifactRef
}

type AnalysisRepository interface {
	Complete(ctx context.Context, completion AnalysisCompletion) (domain.TrustScore, error)
	// GetLatestResults returns the results of the evidence item's most
	// recent completed run.
	GetLatestResults(ctx context.Context, evidenceID string) (*domain.ManifestResult, *domain.ForensicResult, error)
}

type TrustScoreRepository interface {
	GetByID(ctx context.Context, scoreID string) (*domain.TrustScore, error)
	GetLatest(ctx context.Context, evidenceID string) (*domain.TrustScore, error)
}

type CustodyEventRepository interface {
	Append(ctx context.Context, event domain.CustodyEvent) (domain.CustodyEvent, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.CustodyEvent, error)
}

// ArtifactRepository reads the artifact index. Writes happen inside
// AnalysisRepository.Complete so they commit with the run they belong to.
type ArtifactRepository interface {
	Get(ctx context.Context, evidenceID string, kind domain.ArtifactKind, index int) (*domain.ArtifactRef, error)
}

// BlobStore is immutable content-addressed storage. Writing bytes that
// already exist is a no-op returning the same digest.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (digest string, size int64, err error)
	PutBytes(ctx context.Context, data []byte) (digest string, err error)
	Open(ctx context.Context, digest string) (io.ReadCloser, error)
	// Path exposes the blob as a filesystem path for tools that cannot
	// consume a reader (frame extraction).
	Path(digest string) (string, error)
}

type AnalysisQueue interface {
	Enqueue(evidenceID string) error
	Cancel(evidenceID string)
	// Active reports whether the id is currently queued or running.
	Active(evidenceID string) bool
}
