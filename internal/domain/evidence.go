package domain

import "time"

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "PENDING"
	AnalysisRunning AnalysisStatus = "RUNNING"
	AnalysisDone    AnalysisStatus = "DONE"
	AnalysisFailed  AnalysisStatus = "FAILED"
)

// ProvenanceState is a closed enumeration derived from the latest
// ManifestResult and ForensicResult. It is never set directly.
type ProvenanceState string

const (
	ProvenanceVerifiedOriginal ProvenanceState = "VERIFIED_ORIGINAL"
	ProvenanceAlteredOrBroken  ProvenanceState = "ALTERED_OR_BROKEN_PROVENANCE"
	ProvenanceUnverifiable     ProvenanceState = "UNVERIFIABLE_NO_PROVENANCE"
)

type Evidence struct {
	ID              string          `json:"id"`
	CaseID          string          `json:"case_id"`
	Filename        string          `json:"filename"`
	Digest          string          `json:"digest"`
	SizeBytes       int64           `json:"size_bytes"`
	MediaKind       MediaKind       `json:"media_kind"`
	AnalysisStatus  AnalysisStatus  `json:"analysis_status"`
	Retryable       bool            `json:"retryable,omitempty"`
	FailureCode     string          `json:"failure_code,omitempty"`
	ProvenanceState ProvenanceState `json:"provenance_state,omitempty"`
	TrustScoreID    string          `json:"trust_score_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DeriveProvenanceState computes the provenance state from analysis
// results. Manifest breakage and forensic flags both force the altered
// state; a verified manifest only counts when forensics are clean.
func DeriveProvenanceState(manifest ManifestResult, forensic ForensicResult) ProvenanceState {
	if manifest.Present && !manifest.Verified {
		return ProvenanceAlteredOrBroken
	}
	if forensic.Flagged() {
		return ProvenanceAlteredOrBroken
	}
	if manifest.Present && manifest.Verified {
		return ProvenanceVerifiedOriginal
	}
	return ProvenanceUnverifiable
}
