package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"plate-match/internal/plate"
)

type textDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Rekognition recognizes plates in-process through AWS Rekognition text
// detection. Only LINE detections that pass format validation are kept.
type Rekognition struct {
	client  textDetector
	timeout time.Duration
	log     zerolog.Logger
}

func NewRekognition(ctx context.Context, region string, timeout time.Duration, log zerolog.Logger) (*Rekognition, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return newRekognition(rekognition.NewFromConfig(cfg), timeout, log), nil
}

func newRekognition(client textDetector, timeout time.Duration, log zerolog.Logger) *Rekognition {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Rekognition{client: client, timeout: timeout, log: log}
}

func (r *Rekognition) Name() string { return "rekognition" }

func (r *Rekognition) Detect(ctx context.Context, frame gocv.Mat) []PlateHit {
	if frame.Empty() {
		return nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to encode frame for Rekognition")
		return nil
	}
	defer buf.Close()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: buf.GetBytes()},
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("Rekognition DetectText failed")
		return nil
	}

	var hits []PlateHit
	for _, d := range out.TextDetections {
		if d.Type != types.TextTypesLine {
			continue
		}
		text := aws.ToString(d.DetectedText)
		if !plate.IsValidFormat(text) {
			continue
		}
		hits = append(hits, PlateHit{
			Text:       plate.Normalize(text),
			Confidence: unitConfidence(float64(aws.ToFloat32(d.Confidence))),
		})
	}
	r.log.Debug().Int("detections", len(out.TextDetections)).Int("plates", len(hits)).Msg("Rekognition text detection")
	return hits
}

var _ External = (*Rekognition)(nil)
