package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"truthsig/internal/domain"
	"truthsig/internal/infra/report"
	"truthsig/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createCaseRequest struct {
	Title string `json:"title"`
}

type evidenceResponse struct {
	domain.Evidence
	TrustScore *domain.TrustScore `json:"trust_score,omitempty"`
}

type custodyEventResponse struct {
	ID            string          `json:"id"`
	Seq           int64           `json:"seq"`
	EventType     string          `json:"event_type"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
	PayloadHash   string          `json:"payload_hash"`
	PrevEventHash string          `json:"prev_event_hash"`
	EventHash     string          `json:"event_hash"`
	CreatedAt     time.Time       `json:"created_at"`
}

type reportResponse struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Case        domain.Case            `json:"case"`
	Items       []usecase.ReportItem   `json:"items"`
	Ledger      []custodyEventResponse `json:"ledger"`
	PayloadHash string                 `json:"payload_sha256"`
}

func actorFrom(c *gin.Context) string {
	if actor := strings.TrimSpace(c.GetHeader("X-Actor")); actor != "" {
		return actor
	}
	return "api"
}

func (s *Server) handleCreateCase(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeErrorCode(c, http.StatusBadRequest, "MALFORMED_UPLOAD", "title is required")
		return
	}
	newCase := domain.Case{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Status:    domain.CaseStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.cases.Create(c.Request.Context(), newCase); err != nil {
		writeError(c, err)
		return
	}
	event, err := usecase.NewCustodyEvent(newCase.ID, domain.EventCaseCreated, actorFrom(c), map[string]any{
		"title": newCase.Title,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := s.ledger.Append(c.Request.Context(), event); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCase)
}

func (s *Server) handleListCases(c *gin.Context) {
	cases, err := s.cases.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

func (s *Server) handleGetCase(c *gin.Context) {
	found, err := s.cases.GetByID(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) handleUploadEvidence(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		// Parsing the form reads the body, so the byte limit usually
		// trips here rather than in the ingest read.
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(c, http.StatusRequestEntityTooLarge, "MALFORMED_UPLOAD", "upload exceeds size limit")
			return
		}
		writeErrorCode(c, http.StatusBadRequest, "MALFORMED_UPLOAD", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	result, err := s.ingest.Execute(c.Request.Context(), usecase.IngestRequest{
		CaseID:   c.Param("case_id"),
		Filename: header.Filename,
		Actor:    actorFrom(c),
		Content:  file,
	})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorCode(c, http.StatusRequestEntityTooLarge, "MALFORMED_UPLOAD", "upload exceeds size limit")
			return
		}
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"evidence": result.Evidence, "duplicate": result.Duplicate})
}

func (s *Server) handleListEvidence(c *gin.Context) {
	caseID := c.Param("case_id")
	if _, err := s.cases.GetByID(c.Request.Context(), caseID); err != nil {
		writeError(c, err)
		return
	}
	items, err := s.evidence.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]evidenceResponse, 0, len(items))
	for _, e := range items {
		out = append(out, s.decorateEvidence(c, e))
	}
	c.JSON(http.StatusOK, gin.H{"evidence": out})
}

func (s *Server) handleGetEvidence(c *gin.Context) {
	found, err := s.evidence.GetByID(c.Request.Context(), c.Param("evidence_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.decorateEvidence(c, *found))
}

func (s *Server) decorateEvidence(c *gin.Context, e domain.Evidence) evidenceResponse {
	resp := evidenceResponse{Evidence: e}
	if e.TrustScoreID != "" {
		if score, err := s.scores.GetByID(c.Request.Context(), e.TrustScoreID); err == nil {
			resp.TrustScore = score
		}
	}
	return resp
}

func (s *Server) handleListEvents(c *gin.Context) {
	caseID := c.Param("case_id")
	if _, err := s.cases.GetByID(c.Request.Context(), caseID); err != nil {
		writeError(c, err)
		return
	}
	events, err := s.ledger.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": eventResponses(events)})
}

func (s *Server) handleVerifyLedger(c *gin.Context) {
	caseID := c.Param("case_id")
	if _, err := s.cases.GetByID(c.Request.Context(), caseID); err != nil {
		writeError(c, err)
		return
	}
	events, err := s.ledger.ListByCase(c.Request.Context(), caseID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := usecase.VerifyCaseCustodyChain(c.Request.Context(), s.ledger, caseID); err != nil {
		if errors.Is(err, domain.ErrChainIntegrityViolation) {
			c.JSON(http.StatusOK, gin.H{"valid": false, "events": len(events), "detail": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "events": len(events)})
}

func (s *Server) handleDeleteEvidence(c *gin.Context) {
	if err := s.admin.Delete(c.Request.Context(), c.Param("evidence_id"), actorFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReanalyze(c *gin.Context) {
	evidence, err := s.admin.Reanalyze(c.Request.Context(), c.Param("evidence_id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"evidence": evidence})
}

func (s *Server) handleGetArtifact(c *gin.Context) {
	kind := domain.ArtifactKind(c.Param("kind"))
	switch kind {
	case domain.ArtifactHeatmap, domain.ArtifactFrame, domain.ArtifactFrameHeatmap:
	default:
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "unknown artifact kind")
		return
	}
	index := 0
	if raw := c.Query("index"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorCode(c, http.StatusBadRequest, "MALFORMED_UPLOAD", "invalid index")
			return
		}
		index = parsed
	}
	ref, err := s.artifacts.Get(c.Request.Context(), c.Param("evidence_id"), kind, index)
	if err != nil {
		writeError(c, err)
		return
	}
	blob, err := s.blobs.Open(c.Request.Context(), ref.Digest)
	if err != nil {
		writeError(c, err)
		return
	}
	defer blob.Close()

	contentType := "image/png"
	if kind == domain.ArtifactFrame {
		contentType = "image/jpeg"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, blob, nil)
}

func (s *Server) handleCaseReport(c *gin.Context) {
	caseID := c.Param("case_id")
	snapshot, err := s.compileCoalesced(c, "case:"+caseID, func() (usecase.ReportSnapshot, error) {
		return s.reports.ForCase(c.Request.Context(), caseID)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.renderReport(c, snapshot, "case")
}

func (s *Server) handleEvidenceReport(c *gin.Context) {
	evidenceID := c.Param("evidence_id")
	snapshot, err := s.compileCoalesced(c, "evidence:"+evidenceID, func() (usecase.ReportSnapshot, error) {
		return s.reports.ForEvidence(c.Request.Context(), evidenceID)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.renderReport(c, snapshot, "evidence")
}

func (s *Server) compileCoalesced(c *gin.Context, key string, build func() (usecase.ReportSnapshot, error)) (usecase.ReportSnapshot, error) {
	value, err, _ := s.reportFlight.Do(key, func() (any, error) {
		snapshot, err := build()
		if err != nil {
			return nil, err
		}
		return snapshot, nil
	})
	if err != nil {
		return usecase.ReportSnapshot{}, err
	}
	return value.(usecase.ReportSnapshot), nil
}

func (s *Server) renderReport(c *gin.Context, snapshot usecase.ReportSnapshot, scope string) {
	accept := c.GetHeader("Accept")
	format := "json"
	switch {
	case strings.Contains(accept, "application/pdf"):
		format = "pdf"
	case strings.Contains(accept, "text/plain"):
		format = "text"
	}

	event, err := usecase.NewCustodyEvent(snapshot.Case.ID, domain.EventReportExported, actorFrom(c), map[string]any{
		"scope":        scope,
		"format":       format,
		"payload_hash": snapshot.PayloadHash,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := s.ledger.Append(c.Request.Context(), event); err != nil {
		writeError(c, err)
		return
	}

	switch format {
	case "pdf":
		data, err := report.RenderPDF(snapshot)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/pdf", data)
	case "text":
		c.Data(http.StatusOK, "text/plain; charset=utf-8", report.RenderText(snapshot))
	default:
		c.JSON(http.StatusOK, reportResponse{
			GeneratedAt: snapshot.GeneratedAt,
			Case:        snapshot.Case,
			Items:       snapshot.Items,
			Ledger:      eventResponses(snapshot.Ledger),
			PayloadHash: snapshot.PayloadHash,
		})
	}
}

func (s *Server) requireAdminKey(c *gin.Context) {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key not configured")
		c.Abort()
		return
	}
	provided := c.GetHeader("X-Admin-API-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		c.Abort()
		return
	}
	c.Next()
}

func eventResponses(events []domain.CustodyEvent) []custodyEventResponse {
	out := make([]custodyEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, custodyEventResponse{
			ID:            event.ID,
			Seq:           event.Seq,
			EventType:     string(event.EventType),
			Actor:         event.Actor,
			Payload:       json.RawMessage(event.Payload),
			PayloadHash:   event.PayloadHash,
			PrevEventHash: event.PrevEventHash,
			EventHash:     event.EventHash,
			CreatedAt:     event.CreatedAt,
		})
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrMalformedUpload):
		status, code = http.StatusBadRequest, "MALFORMED_UPLOAD"
	case errors.Is(err, domain.ErrUnsupportedMediaKind):
		status, code = http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_KIND"
	case errors.Is(err, domain.ErrChainIntegrityViolation):
		status, code = http.StatusConflict, "CHAIN_INTEGRITY_VIOLATION"
	case errors.Is(err, domain.ErrAnalysisInFlight):
		status, code = http.StatusConflict, "ANALYSIS_IN_FLIGHT"
	case errors.Is(err, domain.ErrAnalysisTimeout):
		status, code = http.StatusGatewayTimeout, "ANALYSIS_TIMEOUT"
	case errors.Is(err, domain.ErrAnalysisFailure):
		status, code = http.StatusUnprocessableEntity, "ANALYSIS_FAILURE"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
