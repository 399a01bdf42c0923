package http

import (
	"net/http"
	"strconv"
	"time"

	"truthsig/internal/config"
	"truthsig/internal/domain"
	"truthsig/internal/usecase"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	cases     usecase.CaseRepository
	evidence  usecase.EvidenceRepository
	scores    usecase.TrustScoreRepository
	analysis  usecase.AnalysisRepository
	artifacts usecase.ArtifactRepository
	ledger    usecase.CustodyEventRepository
	blobs     usecase.BlobStore

	ingest  *usecase.IngestEvidence
	admin   *usecase.EvidenceAdmin
	reports *usecase.CompileReport

	adminAPIKey    string
	maxUploadBytes int64

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration

	// Concurrent report requests for the same scope share one compile.
	reportFlight singleflight.Group
}

type ServerDeps struct {
	Cases     usecase.CaseRepository
	Evidence  usecase.EvidenceRepository
	Scores    usecase.TrustScoreRepository
	Analysis  usecase.AnalysisRepository
	Artifacts usecase.ArtifactRepository
	Ledger    usecase.CustodyEventRepository
	Blobs     usecase.BlobStore

	Ingest  *usecase.IngestEvidence
	Admin   *usecase.EvidenceAdmin
	Reports *usecase.CompileReport

	RateLimiter domain.RateLimiter
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:            cfg,
		r:              r,
		cases:          deps.Cases,
		evidence:       deps.Evidence,
		scores:         deps.Scores,
		analysis:       deps.Analysis,
		artifacts:      deps.Artifacts,
		ledger:         deps.Ledger,
		blobs:          deps.Blobs,
		ingest:         deps.Ingest,
		admin:          deps.Admin,
		reports:        deps.Reports,
		adminAPIKey:    cfg.AdminAPIKey,
		maxUploadBytes: cfg.MaxUploadBytes(),
		rateLimiter:    deps.RateLimiter,
	}
	s.rateLimitRequests = cfg.RateLimitRequests
	if cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	v1.Use(s.rateLimitMiddleware())
	{
		v1.POST("/cases", s.handleCreateCase)
		v1.GET("/cases", s.handleListCases)
		v1.GET("/cases/:case_id", s.handleGetCase)
		v1.POST("/cases/:case_id/evidence", s.handleUploadEvidence)
		v1.GET("/cases/:case_id/evidence", s.handleListEvidence)
		v1.GET("/cases/:case_id/events", s.handleListEvents)
		v1.GET("/cases/:case_id/ledger/verify", s.handleVerifyLedger)
		v1.GET("/cases/:case_id/report", s.handleCaseReport)

		v1.GET("/evidence/:evidence_id", s.handleGetEvidence)
		v1.DELETE("/evidence/:evidence_id", s.requireAdminKey, s.handleDeleteEvidence)
		v1.POST("/evidence/:evidence_id/reanalyze", s.requireAdminKey, s.handleReanalyze)
		v1.GET("/evidence/:evidence_id/report", s.handleEvidenceReport)
		v1.GET("/evidence/:evidence_id/artifacts/:kind", s.handleGetArtifact)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
			c.Next()
			return
		}
		key := "rl:" + c.ClientIP()
		decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			// Limiter outage does not take the API down with it.
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			if decision.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
			}
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

func (s *Server) Handler() http.Handler {
	return s.r
}
