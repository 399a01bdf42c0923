package usecase

import (
	"fmt"
	"sort"

	"truthsig/internal/domain"
)

const ScoringEngineVersion = "score.v1"

// Reason codes, ordered by severity. The numeric severity decides the
// top-reason ordering; codes break ties so repeated scoring of the same
// inputs is bit-identical.
const (
	sevProvenanceBroken   = 100
	sevForensicAnomaly    = 90
	sevFrameDiscontinuity = 85
	sevNoProvenance       = 40
	sevProvenanceVerified = 20
	sevForensicsClear     = 10
)

const maxTopReasons = 5

// Score combines manifest verification and forensic findings into a
// trust score. It is a pure function: no clock, no randomness, no
// environment. Identical inputs always yield identical output.
func Score(manifest domain.ManifestResult, forensic domain.ForensicResult) domain.TrustScore {
	broken := manifest.Present && !manifest.Verified
	flagged := forensic.Flagged()
	reasons := collectReasons(manifest, forensic)

	var score int
	var band domain.TrustBand
	switch {
	case broken || flagged:
		score = lowBandScore(broken, forensic)
		band = domain.TrustBandLow
	case manifest.Present && manifest.Verified:
		score = highBandScore(forensic)
		band = domain.TrustBandHigh
	default:
		score = midBandScore(forensic)
		band = domain.TrustBandMid
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		if reasons[i].Severity != reasons[j].Severity {
			return reasons[i].Severity > reasons[j].Severity
		}
		return reasons[i].Code < reasons[j].Code
	})
	if len(reasons) > maxTopReasons {
		reasons = reasons[:maxTopReasons]
	}

	return domain.TrustScore{
		Score:      score,
		Band:       band,
		Rationale:  fmt.Sprintf("%s trust (%d/100): %s", band, score, reasons[0].Message),
		TopReasons: reasons,
	}
}

func collectReasons(manifest domain.ManifestResult, forensic domain.ForensicResult) []domain.Reason {
	var reasons []domain.Reason
	switch {
	case manifest.Present && !manifest.Verified:
		reasons = append(reasons, domain.Reason{
			Code:     "PROVENANCE_BROKEN",
			Severity: sevProvenanceBroken,
			Message:  fmt.Sprintf("provenance manifest present but broken (%s)", manifest.BrokenReason),
		})
	case manifest.Present && manifest.Verified:
		reasons = append(reasons, domain.Reason{
			Code:     "PROVENANCE_VERIFIED",
			Severity: sevProvenanceVerified,
			Message:  "cryptographic provenance manifest verified against trusted roots",
		})
	default:
		reasons = append(reasons, domain.Reason{
			Code:     "NO_PROVENANCE",
			Severity: sevNoProvenance,
			Message:  "no provenance manifest found; absence is not evidence of tampering",
		})
	}

	switch forensic.Kind {
	case domain.MediaKindImage:
		if forensic.Image == nil {
			break
		}
		if forensic.Image.Suspicious {
			reasons = append(reasons, domain.Reason{
				Code:     "FORENSIC_ANOMALY",
				Severity: sevForensicAnomaly,
				Message:  fmt.Sprintf("error-level analysis shows elevated anomaly score %.1f", forensic.Image.AnomalyScore),
			})
		} else {
			reasons = append(reasons, domain.Reason{
				Code:     "FORENSICS_CLEAR",
				Severity: sevForensicsClear,
				Message:  "no strong error-level anomalies detected",
			})
		}
	case domain.MediaKindVideo:
		if forensic.Video == nil {
			break
		}
		if n := len(forensic.Video.FlaggedFrames); n > 0 {
			reasons = append(reasons, domain.Reason{
				Code:     "FLAGGED_FRAMES",
				Severity: sevFrameDiscontinuity,
				Message:  fmt.Sprintf("%d of %d sampled frames show anomalous error levels", n, forensic.Video.SampledFrames),
			})
		} else {
			reasons = append(reasons, domain.Reason{
				Code:     "FORENSICS_CLEAR",
				Severity: sevForensicsClear,
				Message:  "no sampled frame shows anomalous error levels",
			})
		}
	}
	return reasons
}

// highBandScore maps a clean forensic margin onto [85,100]: the lower
// the residual anomaly, the closer to 100.
func highBandScore(forensic domain.ForensicResult) int {
	return clamp(100-int(anomalyOf(forensic)*15.0/25.0), 85, 100)
}

// midBandScore maps a clean-but-unverifiable item onto [40,60].
func midBandScore(forensic domain.ForensicResult) int {
	return clamp(60-int(anomalyOf(forensic)*20.0/25.0), 40, 60)
}

// lowBandScore maps broken provenance and forensic flags onto [0,30].
func lowBandScore(broken bool, forensic domain.ForensicResult) int {
	score := 30
	if broken {
		score -= 18
	}
	switch forensic.Kind {
	case domain.MediaKindImage:
		if forensic.Image != nil && forensic.Image.Suspicious {
			score -= 12
		}
	case domain.MediaKindVideo:
		if forensic.Video != nil {
			score -= 4 * len(forensic.Video.FlaggedFrames)
		}
	}
	return clamp(score, 0, 30)
}

func anomalyOf(forensic domain.ForensicResult) float64 {
	switch forensic.Kind {
	case domain.MediaKindImage:
		if forensic.Image != nil {
			return forensic.Image.AnomalyScore
		}
	case domain.MediaKindVideo:
		if forensic.Video != nil {
			return forensic.Video.AverageScore
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
