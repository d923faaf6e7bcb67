package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

var ErrUnavailable = errors.New("ocr engine unavailable")

// Result is one text hit reported by an engine. Confidence is in [0,1].
type Result struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// Engine reads text from an encoded image.
type Engine interface {
	Read(img []byte) ([]Result, error)
	Close() error
}

// Unavailable stands in for an engine that failed to start. Every read fails
// with ErrUnavailable.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Read([]byte) ([]Result, error) {
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, u.Reason)
}

func (Unavailable) Close() error { return nil }

// Options configures the Tesseract engine.
type Options struct {
	Language  string
	Whitelist string
}

// Tesseract is an Engine backed by a single gosseract client.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// OpenTesseract creates the client and runs a probe read so missing language
// data is reported here instead of on the first frame.
func OpenTesseract(opts Options) (*Tesseract, error) {
	client := gosseract.NewClient()
	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR whitelist: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	probe, err := blankPNG()
	if err != nil {
		client.Close()
		return nil, err
	}
	if err := client.SetImageFromBytes(probe); err != nil {
		client.Close()
		return nil, fmt.Errorf("OCR probe failed: %w", err)
	}
	if _, err := client.Text(); err != nil {
		client.Close()
		return nil, fmt.Errorf("OCR probe failed: %w", err)
	}
	return &Tesseract{client: client}, nil
}

// Load opens Tesseract and degrades to Unavailable when that fails. The
// failure is logged once here; callers check Available instead of retrying.
func Load(opts Options, log zerolog.Logger) Engine {
	engine, err := OpenTesseract(opts)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize OCR engine, falling back to shape heuristic")
		return Unavailable{Reason: err}
	}
	log.Info().Str("tesseract", gosseract.Version()).Str("language", opts.Language).Msg("OCR engine ready")
	return engine
}

func (t *Tesseract) Read(img []byte) ([]Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("failed to set OCR image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}
	results := make([]Result, 0, len(boxes))
	for _, b := range boxes {
		results = append(results, Result{
			Box:        b.Box,
			Text:       b.Word,
			Confidence: b.Confidence / 100,
		})
	}
	return results, nil
}

func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

func blankPNG() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode OCR probe: %w", err)
	}
	return buf.Bytes(), nil
}
