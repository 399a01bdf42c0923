package domain

type ArtifactKind string

const (
	ArtifactHeatmap      ArtifactKind = "heatmap"
	ArtifactFrame        ArtifactKind = "frame"
	ArtifactFrameHeatmap ArtifactKind = "frame_heatmap"
)

// ArtifactRef points at a content-addressed derived output (heatmap,
// frame thumbnail). Index is meaningful only for per-frame artifacts.
type ArtifactRef struct {
	Kind   ArtifactKind `json:"kind"`
	Digest string       `json:"digest"`
	Index  int          `json:"index,omitempty"`
}

type ImageFindings struct {
	AnomalyScore float64     `json:"anomaly_score"`
	Suspicious   bool        `json:"suspicious"`
	Heatmap      ArtifactRef `json:"heatmap"`
}

type FlaggedFrame struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type VideoFindings struct {
	SampledFrames int            `json:"sampled_frames"`
	AverageScore  float64        `json:"average_score"`
	FlaggedFrames []FlaggedFrame `json:"flagged_frames"`
	Artifacts     []ArtifactRef  `json:"artifacts,omitempty"`
}

// ForensicResult is polymorphic over the closed media-kind set. Exactly
// one of Image/Video is set, matching Kind.
type ForensicResult struct {
	Kind  MediaKind      `json:"kind"`
	Image *ImageFindings `json:"image,omitempty"`
	Video *VideoFindings `json:"video,omitempty"`
}

func (r ForensicResult) Flagged() bool {
	switch r.Kind {
	case MediaKindImage:
		return r.Image != nil && r.Image.Suspicious
	case MediaKindVideo:
		return r.Video != nil && len(r.Video.FlaggedFrames) > 0
	}
	return false
}
