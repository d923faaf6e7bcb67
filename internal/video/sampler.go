package video

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// DefaultMaxFrames is the number of frames sampled from a video when the
// caller does not ask for a different amount.
const DefaultMaxFrames = 8

var (
	ErrVideoOpen = errors.New("could not open video file")
	ErrNoFrames  = errors.New("could not extract frames from video")
)

// Frame is one sampled frame. Index is 1-based within the sample; Position
// is the 0-based frame number in the source stream.
type Frame struct {
	Index    int
	Position int
	Image    gocv.Mat
}

func (f Frame) Close() error {
	return f.Image.Close()
}

// CloseAll releases every frame image.
func CloseAll(frames []Frame) {
	for _, f := range frames {
		f.Close()
	}
}

type source interface {
	FrameCount() int
	Read(dst *gocv.Mat) bool
	Close() error
}

type captureSource struct {
	vc *gocv.VideoCapture
}

func (c captureSource) FrameCount() int {
	return int(c.vc.Get(gocv.VideoCaptureFrameCount))
}

func (c captureSource) Read(dst *gocv.Mat) bool {
	return c.vc.Read(dst)
}

func (c captureSource) Close() error {
	return c.vc.Close()
}

func openCapture(path string) (source, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.New("capture is not opened")
	}
	return captureSource{vc: vc}, nil
}

// Sampler extracts an evenly spaced subset of frames from a video file.
type Sampler struct {
	maxFrames int
	open      func(path string) (source, error)
	log       zerolog.Logger
}

func NewSampler(maxFrames int, log zerolog.Logger) *Sampler {
	if maxFrames < 1 {
		maxFrames = DefaultMaxFrames
	}
	return &Sampler{
		maxFrames: maxFrames,
		open:      openCapture,
		log:       log,
	}
}

// MaxFrames returns the sample size limit.
func (s *Sampler) MaxFrames() int {
	return s.maxFrames
}

// Interval returns the stride between sampled frames: every frame when the
// video is short enough, otherwise floor(total/maxFrames).
func Interval(total, maxFrames int) int {
	if maxFrames < 1 || total <= maxFrames {
		return 1
	}
	return total / maxFrames
}

// Sample reads the video at path and returns at most MaxFrames frames in
// stream order. The caller owns the returned frames and must close them.
func (s *Sampler) Sample(path string) ([]Frame, error) {
	src, err := s.open(path)
	if err != nil {
		s.log.Error().Err(err).Str("video", path).Msg("could not open video file")
		return nil, fmt.Errorf("%w %s: %v", ErrVideoOpen, path, err)
	}
	defer src.Close()

	total := src.FrameCount()
	interval := Interval(total, s.maxFrames)

	buf := gocv.NewMat()
	defer buf.Close()

	frames := make([]Frame, 0, s.maxFrames)
	for pos := 0; len(frames) < s.maxFrames; pos++ {
		if ok := src.Read(&buf); !ok || buf.Empty() {
			break
		}
		if pos%interval != 0 {
			continue
		}
		frames = append(frames, Frame{
			Index:    len(frames) + 1,
			Position: pos,
			Image:    buf.Clone(),
		})
	}

	s.log.Info().
		Str("video", path).
		Int("total_frames", total).
		Int("interval", interval).
		Int("extracted", len(frames)).
		Msg("extracted frames from video")
	return frames, nil
}
