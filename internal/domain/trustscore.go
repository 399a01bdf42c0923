package domain

import "time"

type TrustBand string

const (
	TrustBandHigh TrustBand = "HIGH"
	TrustBandMid  TrustBand = "MEDIUM"
	TrustBandLow  TrustBand = "LOW"
)

type Reason struct {
	Code     string `json:"code"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
}

// TrustScore is an immutable scored verdict. Recomputation creates a new
// version; Evidence points at the latest.
type TrustScore struct {
	ID         string    `json:"id"`
	EvidenceID string    `json:"evidence_id"`
	Version    int       `json:"version"`
	Score      int       `json:"score"`
	Band       TrustBand `json:"band"`
	Rationale  string    `json:"one_line_rationale"`
	TopReasons []Reason  `json:"top_reasons"`
	CreatedAt  time.Time `json:"created_at"`
}
