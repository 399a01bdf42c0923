package main

import (
	"context"
	"log"
	"time"

	"truthsig/internal/config"
	"truthsig/internal/domain"
	"truthsig/internal/forensic"
	"truthsig/internal/infra/blob"
	"truthsig/internal/infra/db"
	httpinfra "truthsig/internal/infra/http"
	"truthsig/internal/infra/jobs"
	"truthsig/internal/infra/policyopa"
	"truthsig/internal/infra/ratelimit"
	"truthsig/internal/manifest"
	"truthsig/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	store, err := db.NewStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	blobs, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	policy, err := manifest.NewTrustPolicy(cfg.TrustedRootKeys)
	if err != nil {
		log.Fatalf("invalid trusted root keys: %v", err)
	}
	if len(policy.Roots) == 0 {
		log.Printf("no trusted root keys configured; all embedded manifests will fail closed")
	}

	caseRepo := db.NewCaseRepository(store.DB)
	evidenceRepo := db.NewEvidenceRepository(store.DB)
	ledgerRepo := db.NewCustodyEventRepository(store.DB, nil)
	analysisRepo := db.NewAnalysisRepository(store.DB, nil)
	scoreRepo := db.NewTrustScoreRepository(store.DB)
	artifactRepo := db.NewArtifactRepository(store.DB)

	elaCfg := forensic.ELAConfig{
		Quality:        cfg.ELAQuality,
		Amplify:        cfg.ELAAmplify,
		BlockSize:      cfg.ELABlockSize,
		SuspiciousMean: cfg.ELASuspiciousMean,
	}
	videoAnalyzer := forensic.NewVideoAnalyzer(forensic.VideoConfig{
		ELA:         elaCfg,
		FrameCount:  cfg.VideoFrameCount,
		Workers:     cfg.VideoFrameWorkers,
		MaxFlagged:  cfg.VideoMaxFlagged,
		DeltaFactor: cfg.VideoDeltaFactor,
	})

	analyze := &usecase.AnalyzeEvidence{
		Evidence: evidenceRepo,
		Analysis: analysisRepo,
		Ledger:   ledgerRepo,
		Blobs:    blobs,
		Verifier: &manifest.Verifier{Policy: policy},
		ELA:      elaCfg,
		Video:    videoAnalyzer,
		Timeout:  cfg.AnalysisTimeout(),
	}
	queue := jobs.NewQueue(analyze.Run, cfg.AnalysisWorkers, 0)
	defer queue.Close()

	ingest := &usecase.IngestEvidence{
		Cases:    caseRepo,
		Evidence: evidenceRepo,
		Ledger:   ledgerRepo,
		Blobs:    blobs,
		Queue:    queue,
	}
	admin := &usecase.EvidenceAdmin{
		Evidence: evidenceRepo,
		Ledger:   ledgerRepo,
		Queue:    queue,
	}
	reports := &usecase.CompileReport{
		Cases:    caseRepo,
		Evidence: evidenceRepo,
		Scores:   scoreRepo,
		Analysis: analysisRepo,
		Ledger:   ledgerRepo,
	}
	if cfg.ReportPolicyBundlePath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.ReportPolicyBundlePath)
		cancel()
		if err != nil {
			log.Fatalf("failed to load report policy bundle: %v", err)
		}
		reports.Policy = engine
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				log.Fatalf("failed to init redis rate limiter: %v", err)
			}
		} else {
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
		}
	}

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Cases:       caseRepo,
		Evidence:    evidenceRepo,
		Scores:      scoreRepo,
		Analysis:    analysisRepo,
		Artifacts:   artifactRepo,
		Ledger:      ledgerRepo,
		Blobs:       blobs,
		Ingest:      ingest,
		Admin:       admin,
		Reports:     reports,
		RateLimiter: limiter,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
