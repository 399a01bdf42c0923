package forensic

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"truthsig/internal/domain"
)

// VideoConfig controls frame sampling and flagging.
type VideoConfig struct {
	ELA ELAConfig
	// FrameCount is the number of evenly spaced frames to sample.
	FrameCount int
	// Workers bounds concurrent per-frame analysis.
	Workers int
	// MaxFlagged caps the reported flagged-frame list.
	MaxFlagged int
	// DeltaFactor flags a frame whose score exceeds the rolling baseline
	// of its sampled neighbors by this multiple, even below the absolute
	// threshold.
	DeltaFactor float64
}

type FrameAnalysis struct {
	Index     int
	TimeSec   float64
	Score     float64
	Thumbnail []byte // JPEG
	Heatmap   []byte // PNG
}

type VideoAnalysis struct {
	SampledFrames int
	AverageScore  float64
	FlaggedFrames []domain.FlaggedFrame
	Frames        []FrameAnalysis
}

// VideoAnalyzer samples frames with ffmpeg and runs the image analyzer
// on each. Frame analyses are independent and run concurrently; the
// flagged list is always reported in ascending frame-index order.
type VideoAnalyzer struct {
	Cfg         VideoConfig
	FFmpegPath  string
	FFprobePath string
}

func NewVideoAnalyzer(cfg VideoConfig) *VideoAnalyzer {
	return &VideoAnalyzer{Cfg: cfg, FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

func (a *VideoAnalyzer) Analyze(ctx context.Context, videoPath string) (VideoAnalysis, error) {
	duration, err := a.probeDuration(ctx, videoPath)
	if err != nil {
		return VideoAnalysis{}, err
	}
	if duration <= 0 {
		return VideoAnalysis{}, fmt.Errorf("%w: video has no usable duration", domain.ErrAnalysisFailure)
	}

	workDir, err := os.MkdirTemp("", "truthsig_frames_")
	if err != nil {
		return VideoAnalysis{}, err
	}
	defer os.RemoveAll(workDir)

	count := a.Cfg.FrameCount
	step := duration / float64(count+1)
	frames := make([]FrameAnalysis, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.Cfg.Workers, 1))
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			ts := step * float64(i+1)
			thumb, err := a.extractFrame(gctx, videoPath, workDir, i, ts)
			if err != nil {
				return err
			}
			ela, err := AnalyzeImage(thumb, a.Cfg.ELA)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			frames[i] = FrameAnalysis{
				Index:     i,
				TimeSec:   ts,
				Score:     ela.AnomalyScore,
				Thumbnail: thumb,
				Heatmap:   ela.Heatmap,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return VideoAnalysis{}, err
	}

	scores := make([]float64, count)
	var total float64
	for i, f := range frames {
		scores[i] = f.Score
		total += f.Score
	}

	return VideoAnalysis{
		SampledFrames: count,
		AverageScore:  total / float64(count),
		FlaggedFrames: FlagFrames(scores, a.Cfg.ELA.SuspiciousMean, a.Cfg.DeltaFactor, a.Cfg.MaxFlagged),
		Frames:        frames,
	}, nil
}

// FlagFrames selects anomalous frames from per-frame scores: a frame is
// flagged when its score crosses the absolute threshold, or when it
// deviates sharply from the rolling baseline of its sampled neighbors.
// Output is sorted by ascending index regardless of how the scores were
// produced, and capped at maxFlagged keeping the highest scores.
func FlagFrames(scores []float64, absThreshold, deltaFactor float64, maxFlagged int) []domain.FlaggedFrame {
	var flagged []domain.FlaggedFrame
	for i, score := range scores {
		baseline := neighborMean(scores, i)
		discontinuity := deltaFactor > 0 && baseline > 1.0 && score >= baseline*deltaFactor
		if score >= absThreshold || discontinuity {
			flagged = append(flagged, domain.FlaggedFrame{Index: i, Score: score})
		}
	}
	if maxFlagged > 0 && len(flagged) > maxFlagged {
		sort.Slice(flagged, func(i, j int) bool { return flagged[i].Score > flagged[j].Score })
		flagged = flagged[:maxFlagged]
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Index < flagged[j].Index })
	return flagged
}

// neighborMean is the rolling baseline: the mean score of up to two
// sampled frames on each side, excluding the frame itself.
func neighborMean(scores []float64, idx int) float64 {
	var sum float64
	var n int
	for i := idx - 2; i <= idx+2; i++ {
		if i == idx || i < 0 || i >= len(scores) {
			continue
		}
		sum += scores[i]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (a *VideoAnalyzer) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, a.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: %v", domain.ErrAnalysisFailure, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable duration", domain.ErrAnalysisFailure)
	}
	return duration, nil
}

func (a *VideoAnalyzer) extractFrame(ctx context.Context, videoPath, workDir string, index int, ts float64) ([]byte, error) {
	framePath := filepath.Join(workDir, fmt.Sprintf("frame_%03d.jpg", index))
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.FFmpegPath,
		"-ss", fmt.Sprintf("%.2f", ts),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", framePath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: extract frame %d: %v", domain.ErrAnalysisFailure, index, firstLine(stderr.String()))
	}
	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d missing", domain.ErrAnalysisFailure, index)
	}
	return data, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
