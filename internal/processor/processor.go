package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"plate-match/internal/detect"
	"plate-match/internal/plate"
	"plate-match/internal/video"
)

// FrameSource samples frames from a video file.
type FrameSource interface {
	Sample(path string) ([]video.Frame, error)
}

// RegionDetector runs the local detection pipelines on one frame.
type RegionDetector interface {
	Detect(frame gocv.Mat) []plate.DetectedPlate
}

// Processor runs the plate pipeline over a video. It holds an OCR engine and
// is not safe for concurrent use; serialize calls or use one per worker.
type Processor struct {
	frames   FrameSource
	external detect.External
	local    RegionDetector
	log      zerolog.Logger
}

func New(frames FrameSource, external detect.External, local RegionDetector, log zerolog.Logger) *Processor {
	if external == nil {
		external = detect.Disabled{}
	}
	return &Processor{
		frames:   frames,
		external: external,
		local:    local,
		log:      log,
	}
}

// Process detects plates in the video at path. Failures come back as a
// result with Success unset and Error filled.
func (p *Processor) Process(ctx context.Context, path string) *plate.VideoResult {
	p.log.Info().Str("video", path).Msg("processing video")

	frames, err := p.frames.Sample(path)
	if err == nil && len(frames) == 0 {
		err = video.ErrNoFrames
	}
	if err != nil {
		msg := video.ErrNoFrames.Error()
		if errors.Is(err, video.ErrVideoOpen) {
			msg = err.Error()
		}
		p.log.Error().Err(err).Str("video", path).Msg("video processing failed")
		return failedVideo(msg)
	}
	defer video.CloseAll(frames)

	debug := plate.DebugInfo{
		TotalFrames:      len(frames),
		DetectionMethods: make(map[plate.Method]int),
	}

	var all []plate.DetectedPlate
	for _, f := range frames {
		p.log.Debug().Int("frame", f.Index).Int("of", len(frames)).Msg("processing frame")

		found, err := p.detectFrame(ctx, f)
		if err != nil {
			debug.FrameErrors++
			p.log.Warn().Err(err).Int("frame", f.Index).Msg("frame detection failed")
			continue
		}
		if len(found) == 0 {
			continue
		}

		debug.FramesWithDetections++
		debug.TotalDetections += len(found)
		for i := range found {
			found[i].FrameNumber = f.Index
			debug.DetectionMethods[found[i].Method]++
		}
		all = append(all, found...)
	}

	unique := plate.Unique(all)
	p.log.Info().
		Str("video", path).
		Int("frames", len(frames)).
		Int("frames_with_detections", debug.FramesWithDetections).
		Int("detections", debug.TotalDetections).
		Int("unique_plates", len(unique)).
		Msg("video processed")

	return &plate.VideoResult{
		Success:              true,
		TotalFramesProcessed: len(frames),
		DetectedPlates:       unique,
		UniquePlateCount:     len(unique),
		Debug:                debug,
	}
}

// ProcessWithPlate processes the video and matches its plates against target.
func (p *Processor) ProcessWithPlate(ctx context.Context, path, target string) *plate.VideoResult {
	res := p.Process(ctx, path)
	if !res.Success || target == "" {
		return res
	}
	match := plate.Match(res.DetectedPlates, target)
	res.Match = &match

	p.log.Info().
		Str("target", target).
		Bool("match_found", match.MatchFound).
		Bool("exact", match.IsExact()).
		Float64("confidence", match.Confidence).
		Msg("plate matched")
	return res
}

// ProcessWithVehicles processes the video and matches every plate of info.
func (p *Processor) ProcessWithVehicles(ctx context.Context, path string, info plate.VehicleInfo) *plate.MultiResult {
	p.log.Info().Str("video", path).Strs("plates", info.AllPlates).Msg("processing video with multiple plates")

	base := p.Process(ctx, path)
	if !base.Success {
		return &plate.MultiResult{
			Error:             base.Error,
			VideoPath:         path,
			Vehicles:          info,
			AllDetectedPlates: base.DetectedPlates,
			Matches:           map[string]plate.MatchResult{},
			Summary:           plate.Summary{TotalPlatesInMessage: len(info.AllPlates)},
			Debug:             base.Debug,
		}
	}

	matches, summary := plate.MatchAll(base.DetectedPlates, info)
	return &plate.MultiResult{
		Success:              true,
		VideoPath:            path,
		Vehicles:             info,
		TotalFramesProcessed: base.TotalFramesProcessed,
		AllDetectedPlates:    base.DetectedPlates,
		Matches:              matches,
		Summary:              summary,
		Debug:                base.Debug,
	}
}

// failedVideo is the result for a video that produced no usable frames. Its
// collections are empty rather than nil so every result has the same shape.
func failedVideo(msg string) *plate.VideoResult {
	return &plate.VideoResult{
		Error:          msg,
		DetectedPlates: []plate.DetectedPlate{},
		Debug:          plate.DebugInfo{DetectionMethods: map[plate.Method]int{}},
	}
}

// detectFrame tries the external detector first and falls back to the local
// pipelines when it finds nothing. A panic inside either is reported as an
// error for this frame only.
func (p *Processor) detectFrame(ctx context.Context, f video.Frame) (found []plate.DetectedPlate, err error) {
	defer func() {
		if r := recover(); r != nil {
			found, err = nil, fmt.Errorf("panic in frame %d: %v", f.Index, r)
		}
	}()

	for _, hit := range p.external.Detect(ctx, f.Image) {
		found = append(found, plate.DetectedPlate{
			Text:          hit.Text,
			Confidence:    hit.Confidence,
			Method:        plate.MethodExternal,
			IsValidFormat: plate.IsValidFormat(hit.Text),
		})
	}
	if len(found) > 0 || p.local == nil {
		return found, nil
	}
	return p.local.Detect(f.Image), nil
}
