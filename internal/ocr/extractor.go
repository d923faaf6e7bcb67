package ocr

import (
	"image"
	"sort"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"plate-match/internal/plate"
)

const (
	minConfidence   = 0.3
	minLength       = 3
	retryConfidence = 0.1
	retryMinLength  = 2
)

// Hit is a cleaned text candidate.
type Hit struct {
	Text       string
	Confidence float64
}

// Extractor turns a plate crop into text using an Engine.
type Extractor struct {
	engine Engine
	log    zerolog.Logger
}

func NewExtractor(engine Engine, log zerolog.Logger) *Extractor {
	if engine == nil {
		engine = Unavailable{Reason: ErrUnavailable}
	}
	return &Extractor{engine: engine, log: log}
}

// Available reports whether the engine started. When it did not, Extract is
// never worth calling.
func (e *Extractor) Available() bool {
	_, down := e.engine.(Unavailable)
	return !down
}

// Extract reads the best text hit from a plate crop. It tries the grayscale
// crop, an Otsu binary, a closed binary and an adaptive threshold; if none
// yields a usable hit it retries the grayscale crop with relaxed limits.
func (e *Extractor) Extract(region gocv.Mat) (Hit, bool) {
	if region.Empty() {
		return Hit{}, false
	}

	variants := preprocess(region)
	defer func() {
		for _, v := range variants {
			v.Close()
		}
	}()

	var hits []Hit
	for i, v := range variants {
		results, err := e.read(v)
		if err != nil {
			e.log.Debug().Err(err).Int("variant", i).Msg("OCR failed on image variant")
			continue
		}
		hits = append(hits, collect(results, minConfidence, minLength)...)
	}

	if len(hits) == 0 {
		results, err := e.read(variants[0])
		if err != nil {
			e.log.Debug().Err(err).Msg("low confidence OCR failed")
		} else {
			hits = collect(results, retryConfidence, retryMinLength)
		}
	}

	return best(hits)
}

func (e *Extractor) read(img gocv.Mat) ([]Result, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return e.engine.Read(buf.GetBytes())
}

// preprocess returns the grayscale crop first, followed by the binarised
// variants. The caller closes every returned Mat.
func preprocess(region gocv.Mat) []gocv.Mat {
	gray := Grayscale(region)

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()
	cleaned := gocv.NewMat()
	gocv.MorphologyEx(binary, &cleaned, gocv.MorphClose, kernel)

	adaptive := gocv.NewMat()
	gocv.AdaptiveThreshold(gray, &adaptive, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, 11, 2)

	return []gocv.Mat{gray, binary, cleaned, adaptive}
}

// Grayscale returns a single-channel copy of img.
func Grayscale(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

func collect(results []Result, minConf float64, minLen int) []Hit {
	var hits []Hit
	for _, r := range results {
		if r.Confidence <= minConf {
			continue
		}
		text := plate.Normalize(r.Text)
		if len(text) < minLen {
			continue
		}
		hits = append(hits, Hit{Text: text, Confidence: r.Confidence})
	}
	return hits
}

func best(hits []Hit) (Hit, bool) {
	if len(hits) == 0 {
		return Hit{}, false
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})
	return hits[0], true
}
