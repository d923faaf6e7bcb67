package detect

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"plate-match/internal/ocr"
	"plate-match/internal/plate"
)

const (
	minPlateArea   = 500
	minPlateAspect = 1.5
	maxPlateAspect = 6.0

	minCharArea   = 50
	maxCharArea   = 2000
	minCharAspect = 0.2
	maxCharAspect = 2.0
	minCharCount  = 3

	validConfidence   = 0.8
	invalidConfidence = 0.3
)

// Local finds plate-shaped regions with three image-processing pipelines and
// reads each region with OCR.
type Local struct {
	ocr         *ocr.Extractor
	placeholder bool
	log         zerolog.Logger
}

// NewLocal returns a local detector. With placeholder set, regions OCR cannot
// read are still reported as PLATE_<n>CHARS when they hold enough
// character-shaped blobs.
func NewLocal(extractor *ocr.Extractor, placeholder bool, log zerolog.Logger) *Local {
	return &Local{ocr: extractor, placeholder: placeholder, log: log}
}

// Detect returns every readable candidate region of frame. FrameNumber is
// left for the caller to fill.
func (l *Local) Detect(frame gocv.Mat) []plate.DetectedPlate {
	if frame.Empty() {
		return nil
	}

	gray := ocr.Grayscale(frame)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(17, 3))
	defer kernel.Close()

	morphed := gocv.NewMat()
	defer morphed.Close()
	gocv.MorphologyEx(blurred, &morphed, gocv.MorphClose, kernel)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	adaptive := gocv.NewMat()
	defer adaptive.Close()
	gocv.AdaptiveThreshold(gray, &adaptive, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, 11, 2)

	pipelines := []struct {
		method plate.Method
		img    gocv.Mat
	}{
		{plate.MethodMorphological, morphed},
		{plate.MethodEdges, edges},
		{plate.MethodAdaptiveThresh, adaptive},
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	ocrReady := l.ocr != nil && l.ocr.Available()

	var plates []plate.DetectedPlate
	for _, p := range pipelines {
		for _, rect := range candidateRects(p.img) {
			rect = rect.Intersect(bounds)
			if rect.Empty() {
				continue
			}
			region := frame.Region(rect)
			if found, ok := l.read(region, ocrReady); ok {
				found.BBox = plate.BBoxFromRect(rect)
				found.Method = p.method
				plates = append(plates, found)
			}
			region.Close()
		}
	}
	return plates
}

func (l *Local) read(region gocv.Mat, ocrReady bool) (plate.DetectedPlate, bool) {
	if ocrReady {
		if hit, ok := l.ocr.Extract(region); ok {
			valid := plate.IsValidFormat(hit.Text)
			return plate.DetectedPlate{
				Text:          hit.Text,
				Confidence:    confidenceFor(valid),
				IsValidFormat: valid,
			}, true
		}
	}
	if !l.placeholder {
		return plate.DetectedPlate{}, false
	}
	n := CountCharacterShapes(region)
	if n < minCharCount {
		return plate.DetectedPlate{}, false
	}
	return plate.DetectedPlate{
		Text:        PlaceholderLabel(n),
		Confidence:  invalidConfidence,
		Placeholder: true,
	}, true
}

func confidenceFor(valid bool) float64 {
	if valid {
		return validConfidence
	}
	return invalidConfidence
}

// candidateRects returns the bounding boxes of the plate-shaped external
// contours of a binary image.
func candidateRects(binary gocv.Mat) []image.Rectangle {
	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var rects []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		rect := gocv.BoundingRect(c)
		if isPlateShape(gocv.ContourArea(c), rect) {
			rects = append(rects, rect)
		}
	}
	return rects
}

func isPlateShape(area float64, rect image.Rectangle) bool {
	if area < minPlateArea || rect.Dy() == 0 {
		return false
	}
	ar := float64(rect.Dx()) / float64(rect.Dy())
	return ar >= minPlateAspect && ar <= maxPlateAspect
}

func isCharacterShape(area float64, rect image.Rectangle) bool {
	if area <= minCharArea || area >= maxCharArea || rect.Dy() == 0 {
		return false
	}
	ar := float64(rect.Dx()) / float64(rect.Dy())
	return ar > minCharAspect && ar < maxCharAspect
}

// CountCharacterShapes counts the character-sized blobs of an Otsu-binarised
// crop.
func CountCharacterShapes(region gocv.Mat) int {
	if region.Empty() {
		return 0
	}
	gray := ocr.Grayscale(region)
	defer gray.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// List retrieval also returns holes, so dark characters on a light plate
	// are counted as well as light characters on a dark one.
	contours := gocv.FindContours(binary, gocv.RetrievalList, gocv.ChainApproxSimple)
	defer contours.Close()

	n := 0
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if isCharacterShape(gocv.ContourArea(c), gocv.BoundingRect(c)) {
			n++
		}
	}
	return n
}

// PlaceholderLabel is the text reported for a region that only the shape
// heuristic could see. It is a debugging marker, not a plate read.
func PlaceholderLabel(chars int) string {
	return fmt.Sprintf("PLATE_%dCHARS", chars)
}
