package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	BlobDir     string

	AdminAPIKey string

	// TrustedRootKeys holds base64-encoded ed25519 public keys accepted as
	// manifest trust anchors. Passed explicitly into the verifier.
	TrustedRootKeys []string

	MaxUploadMB int

	ELAQuality        int
	ELAAmplify        int
	ELABlockSize      int
	ELASuspiciousMean float64

	VideoFrameCount   int
	VideoMaxFlagged   int
	VideoFrameWorkers int
	VideoDeltaFactor  float64

	AnalysisWorkers        int
	AnalysisTimeoutSeconds int

	RateLimitRequests      int
	RateLimitWindowSeconds int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReportPolicyBundlePath string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		BlobDir:                envDefault("BLOB_DIR", "/var/lib/truthsig/blobs"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		TrustedRootKeys:        envList("TRUSTED_ROOT_KEYS_BASE64"),
		MaxUploadMB:            envIntDefault("MAX_UPLOAD_MB", 50),
		ELAQuality:             envIntDefault("ELA_QUALITY", 85),
		ELAAmplify:             envIntDefault("ELA_AMPLIFY", 10),
		ELABlockSize:           envIntDefault("ELA_BLOCK_SIZE", 16),
		ELASuspiciousMean:      envFloatDefault("ELA_SUSPICIOUS_MEAN", 25.0),
		VideoFrameCount:        envIntDefault("VIDEO_FRAME_COUNT", 12),
		VideoMaxFlagged:        envIntDefault("VIDEO_MAX_FLAGGED", 3),
		VideoFrameWorkers:      envIntDefault("VIDEO_FRAME_WORKERS", 4),
		VideoDeltaFactor:       envFloatDefault("VIDEO_DELTA_FACTOR", 2.5),
		AnalysisWorkers:        envIntDefault("ANALYSIS_WORKERS", 4),
		AnalysisTimeoutSeconds: envIntDefault("ANALYSIS_TIMEOUT_SECONDS", 120),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		ReportPolicyBundlePath: os.Getenv("REPORT_POLICY_BUNDLE_PATH"),
	}
}

func (c Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutSeconds) * time.Second
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
