package forensic

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"truthsig/internal/domain"
)

// ELAConfig controls error-level analysis. Identical config and input
// always produce identical output.
type ELAConfig struct {
	// Quality is the fixed JPEG quality used for recompression.
	Quality int
	// Amplify scales the per-channel error before clamping to 255, both
	// for the heatmap and for scoring.
	Amplify int
	// BlockSize is the edge length of the scoring grid.
	BlockSize int
	// SuspiciousMean is the amplified mean-error threshold above which an
	// image is flagged.
	SuspiciousMean float64
}

type ImageAnalysis struct {
	AnomalyScore float64
	Suspicious   bool
	BlockScores  []float64
	Heatmap      []byte // PNG
}

// AnalyzeImage recompresses the image at the configured quality and
// measures per-block error magnitude between the original and the
// recompressed version. High residual error in a region suggests it was
// saved at a different compression generation than its surroundings.
func AnalyzeImage(data []byte, cfg ELAConfig) (ImageAnalysis, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageAnalysis{}, fmt.Errorf("%w: decode image: %v", domain.ErrMalformedUpload, err)
	}
	bounds := src.Bounds()
	orig := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(orig, orig.Bounds(), src, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, orig, &jpeg.Options{Quality: cfg.Quality}); err != nil {
		return ImageAnalysis{}, fmt.Errorf("recompress: %w", err)
	}
	recompressed, err := jpeg.Decode(&buf)
	if err != nil {
		return ImageAnalysis{}, fmt.Errorf("decode recompressed: %w", err)
	}
	recomp := image.NewRGBA(orig.Bounds())
	draw.Draw(recomp, recomp.Bounds(), recompressed, image.Point{}, draw.Src)

	width, height := orig.Bounds().Dx(), orig.Bounds().Dy()
	diff := image.NewRGBA(orig.Bounds())
	var total float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := orig.RGBAAt(x, y)
			r := recomp.RGBAAt(x, y)
			dr := amplify(absDiff(o.R, r.R), cfg.Amplify)
			dg := amplify(absDiff(o.G, r.G), cfg.Amplify)
			db := amplify(absDiff(o.B, r.B), cfg.Amplify)
			diff.SetRGBA(x, y, color.RGBA{R: dr, G: dg, B: db, A: 255})
			total += float64(dr) + float64(dg) + float64(db)
		}
	}
	mean := total / float64(width*height*3)

	blocks := blockMeans(diff, cfg.BlockSize)

	var heatmap bytes.Buffer
	if err := png.Encode(&heatmap, diff); err != nil {
		return ImageAnalysis{}, fmt.Errorf("encode heatmap: %w", err)
	}

	return ImageAnalysis{
		AnomalyScore: mean,
		Suspicious:   mean >= cfg.SuspiciousMean,
		BlockScores:  blocks,
		Heatmap:      heatmap.Bytes(),
	}, nil
}

func blockMeans(diff *image.RGBA, blockSize int) []float64 {
	if blockSize <= 0 {
		blockSize = 16
	}
	width, height := diff.Bounds().Dx(), diff.Bounds().Dy()
	var means []float64
	for by := 0; by < height; by += blockSize {
		for bx := 0; bx < width; bx += blockSize {
			var sum float64
			var n int
			for y := by; y < by+blockSize && y < height; y++ {
				for x := bx; x < bx+blockSize && x < width; x++ {
					c := diff.RGBAAt(x, y)
					sum += float64(c.R) + float64(c.G) + float64(c.B)
					n += 3
				}
			}
			means = append(means, sum/float64(n))
		}
	}
	return means
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func amplify(v, factor int) uint8 {
	v *= factor
	if v > 255 {
		return 255
	}
	return uint8(v)
}
