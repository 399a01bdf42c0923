package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"testing"
	"time"

	"truthsig/internal/domain"
)

type caseRepoStub struct {
	cases map[string]domain.Case
}

func (s *caseRepoStub) Create(_ context.Context, c domain.Case) error {
	s.cases[c.ID] = c
	return nil
}

func (s *caseRepoStub) GetByID(_ context.Context, caseID string) (*domain.Case, error) {
	c, ok := s.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("%w: case %s", domain.ErrNotFound, caseID)
	}
	return &c, nil
}

func (s *caseRepoStub) List(_ context.Context) ([]domain.Case, error) {
	out := make([]domain.Case, 0, len(s.cases))
	for _, c := range s.cases {
		out = append(out, c)
	}
	return out, nil
}

type evidenceRepoStub struct {
	items map[string]domain.Evidence
}

func newEvidenceRepoStub() *evidenceRepoStub {
	return &evidenceRepoStub{items: map[string]domain.Evidence{}}
}

func (s *evidenceRepoStub) Create(_ context.Context, e domain.Evidence) error {
	s.items[e.ID] = e
	return nil
}

func (s *evidenceRepoStub) GetByID(_ context.Context, id string) (*domain.Evidence, error) {
	e, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: evidence %s", domain.ErrNotFound, id)
	}
	return &e, nil
}

func (s *evidenceRepoStub) GetByCaseDigest(_ context.Context, caseID, digest string) (*domain.Evidence, error) {
	for _, e := range s.items {
		if e.CaseID == caseID && e.Digest == digest {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: digest %s", domain.ErrNotFound, digest)
}

func (s *evidenceRepoStub) ListByCase(_ context.Context, caseID string) ([]domain.Evidence, error) {
	out := make([]domain.Evidence, 0)
	for _, e := range s.items {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *evidenceRepoStub) SetStatus(_ context.Context, id string, status domain.AnalysisStatus) error {
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: evidence %s", domain.ErrNotFound, id)
	}
	e.AnalysisStatus = status
	e.FailureCode = ""
	e.Retryable = false
	s.items[id] = e
	return nil
}

func (s *evidenceRepoStub) MarkFailed(_ context.Context, id, code string, retryable bool) error {
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: evidence %s", domain.ErrNotFound, id)
	}
	e.AnalysisStatus = domain.AnalysisFailed
	e.FailureCode = code
	e.Retryable = retryable
	s.items[id] = e
	return nil
}

func (s *evidenceRepoStub) Delete(_ context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: evidence %s", domain.ErrNotFound, id)
	}
	delete(s.items, id)
	return nil
}

type blobStoreStub struct {
	blobs map[string][]byte
}

func newBlobStoreStub() *blobStoreStub {
	return &blobStoreStub{blobs: map[string][]byte{}}
}

func (s *blobStoreStub) Put(_ context.Context, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	digest := domain.SHA256Hex(data)
	s.blobs[digest] = data
	return digest, int64(len(data)), nil
}

func (s *blobStoreStub) PutBytes(ctx context.Context, data []byte) (string, error) {
	digest, _, err := s.Put(ctx, bytes.NewReader(data))
	return digest, err
}

func (s *blobStoreStub) Open(_ context.Context, digest string) (io.ReadCloser, error) {
	data, ok := s.blobs[digest]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, digest)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *blobStoreStub) Path(digest string) (string, error) {
	if _, ok := s.blobs[digest]; !ok {
		return "", fmt.Errorf("%w: blob %s", domain.ErrNotFound, digest)
	}
	return "/stub/" + digest, nil
}

type queueStub struct {
	enqueued   []string
	cancelled  []string
	running    map[string]bool
	enqueueErr error
}

func (q *queueStub) Enqueue(id string) error {
	if q.enqueueErr != nil {
		err := q.enqueueErr
		q.enqueueErr = nil
		return err
	}
	q.enqueued = append(q.enqueued, id)
	return nil
}

func (q *queueStub) Cancel(id string) {
	q.cancelled = append(q.cancelled, id)
}

func (q *queueStub) Active(id string) bool {
	return q.running[id]
}

// testPNG is a solid mid-gray image. Solid color survives a JPEG
// recompression round trip almost untouched, so the fixture never trips
// the error-level threshold on its own.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newIngestFixture() (*IngestEvidence, *caseRepoStub, *evidenceRepoStub, *ledgerStub, *blobStoreStub, *queueStub) {
	cases := &caseRepoStub{cases: map[string]domain.Case{
		"case-1": {ID: "case-1", Title: "test case", Status: domain.CaseStatusOpen},
	}}
	evidence := newEvidenceRepoStub()
	ledger := &ledgerStub{}
	blobs := newBlobStoreStub()
	queue := &queueStub{}
	uc := &IngestEvidence{
		Cases:    cases,
		Evidence: evidence,
		Ledger:   ledger,
		Blobs:    blobs,
		Queue:    queue,
		Clock:    func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return uc, cases, evidence, ledger, blobs, queue
}

func TestIngestEvidence_CreatesPendingAndEnqueues(t *testing.T) {
	uc, _, evidence, ledger, blobs, queue := newIngestFixture()
	data := testPNG(t)

	result, err := uc.Execute(context.Background(), IngestRequest{
		CaseID:   "case-1",
		Filename: "photo.png",
		Actor:    "uploader",
		Content:  bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first upload must not be a duplicate")
	}
	if result.Evidence.AnalysisStatus != domain.AnalysisPending {
		t.Fatalf("expected PENDING, got %s", result.Evidence.AnalysisStatus)
	}
	if result.Evidence.MediaKind != domain.MediaKindImage {
		t.Fatalf("expected image, got %s", result.Evidence.MediaKind)
	}
	if result.Evidence.Digest != domain.SHA256Hex(data) {
		t.Fatal("digest must cover the full upload")
	}
	if _, ok := blobs.blobs[result.Evidence.Digest]; !ok {
		t.Fatal("blob not stored under its digest")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != result.Evidence.ID {
		t.Fatalf("expected one enqueued job, got %v", queue.enqueued)
	}
	if len(ledger.events) != 1 || ledger.events[0].EventType != domain.EventEvidenceSubmitted {
		t.Fatalf("expected EVIDENCE_SUBMITTED event, got %v", ledger.events)
	}
	if len(evidence.items) != 1 {
		t.Fatalf("expected one evidence record, got %d", len(evidence.items))
	}
}

func TestIngestEvidence_DuplicateIsIdempotent(t *testing.T) {
	uc, _, evidence, ledger, _, queue := newIngestFixture()
	data := testPNG(t)

	first, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "case-1", Filename: "a.png", Actor: "uploader", Content: bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "case-1", Filename: "copy-of-a.png", Actor: "uploader", Content: bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("identical bytes must be reported as duplicate")
	}
	if second.Evidence.ID != first.Evidence.ID {
		t.Fatal("duplicate must return the existing record")
	}
	if len(evidence.items) != 1 {
		t.Fatalf("duplicate must not create a second record, got %d", len(evidence.items))
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("duplicate must not enqueue again, got %v", queue.enqueued)
	}
	if ledger.events[len(ledger.events)-1].EventType != domain.EventDuplicateDetected {
		t.Fatal("duplicate upload must leave a DUPLICATE_DETECTED trace")
	}
}

func TestIngestEvidence_UnknownCase(t *testing.T) {
	uc, _, _, _, _, _ := newIngestFixture()
	_, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "missing", Filename: "a.png", Actor: "uploader", Content: bytes.NewReader(testPNG(t)),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIngestEvidence_RejectsUnsupportedContent(t *testing.T) {
	uc, _, _, _, _, queue := newIngestFixture()
	_, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "case-1", Filename: "notes.txt", Actor: "uploader",
		Content: bytes.NewReader([]byte("plain text, not media")),
	})
	if !errors.Is(err, domain.ErrUnsupportedMediaKind) {
		t.Fatalf("expected unsupported media kind, got %v", err)
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("rejected upload must not enqueue")
	}
}

func TestIngestEvidence_EnqueueFailureMarksFailedRetryable(t *testing.T) {
	uc, _, evidence, _, _, queue := newIngestFixture()
	queue.enqueueErr = errors.New("analysis queue full")

	_, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "case-1", Filename: "a.png", Actor: "uploader", Content: bytes.NewReader(testPNG(t)),
	})
	if err == nil {
		t.Fatal("expected enqueue failure to propagate")
	}
	if len(evidence.items) != 1 {
		t.Fatalf("expected one evidence record, got %d", len(evidence.items))
	}
	for _, rec := range evidence.items {
		if rec.AnalysisStatus != domain.AnalysisFailed {
			t.Fatalf("expected FAILED, got %s", rec.AnalysisStatus)
		}
		if !rec.Retryable || rec.FailureCode != "ANALYSIS_FAILURE" {
			t.Fatalf("expected retryable ANALYSIS_FAILURE, got %s retryable=%v", rec.FailureCode, rec.Retryable)
		}
	}
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

func TestIngestEvidence_KeepsBodyLimitErrorInChain(t *testing.T) {
	uc, _, _, _, _, _ := newIngestFixture()
	limit := &http.MaxBytesError{Limit: 8}

	_, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "case-1", Filename: "huge.bin", Actor: "uploader", Content: &errReader{err: limit},
	})
	if !errors.Is(err, domain.ErrMalformedUpload) {
		t.Fatalf("expected malformed upload, got %v", err)
	}
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("body limit error must survive wrapping, got %v", err)
	}
}

func TestIngestEvidence_RejectsEmptyUpload(t *testing.T) {
	uc, _, _, _, _, _ := newIngestFixture()
	_, err := uc.Execute(context.Background(), IngestRequest{
		CaseID: "case-1", Filename: "empty", Actor: "uploader", Content: bytes.NewReader(nil),
	})
	if !errors.Is(err, domain.ErrMalformedUpload) {
		t.Fatalf("expected malformed upload, got %v", err)
	}
}
