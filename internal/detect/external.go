package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"plate-match/internal/plate"
)

// DefaultTimeout bounds a single external detector call.
const DefaultTimeout = 10 * time.Second

// waitDelay bounds how long a killed ALPR process may keep its output pipes
// open through children it spawned.
const waitDelay = time.Second

// PlateHit is a plate read reported by an external detector.
type PlateHit struct {
	Text       string
	Confidence float64
}

// External is an optional whole-frame plate recognizer. Implementations
// absorb their own failures and return no hits instead.
type External interface {
	Name() string
	Detect(ctx context.Context, frame gocv.Mat) []PlateHit
}

// Disabled is the External used when no external detector is configured.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Detect(context.Context, gocv.Mat) []PlateHit { return nil }

// ALPROptions configures the command-line recognizer.
type ALPROptions struct {
	Command    string
	Country    string
	ConfigFile string
	Timeout    time.Duration
}

// ALPRCommand runs the openalpr command-line tool on a still image of the
// frame and parses its JSON output.
type ALPRCommand struct {
	opts    ALPROptions
	missing atomic.Bool
	log     zerolog.Logger
}

func NewALPRCommand(opts ALPROptions, log zerolog.Logger) *ALPRCommand {
	if opts.Command == "" {
		opts.Command = "alpr"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &ALPRCommand{opts: opts, log: log}
}

func (a *ALPRCommand) Name() string { return "alpr" }

func (a *ALPRCommand) Detect(ctx context.Context, frame gocv.Mat) []PlateHit {
	if a.missing.Load() || frame.Empty() {
		return nil
	}

	tmp, err := os.CreateTemp("", "plate-frame-*.jpg")
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to create temp frame for ALPR")
		return nil
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if ok := gocv.IMWrite(path, frame); !ok {
		a.log.Warn().Str("path", path).Msg("failed to write temp frame for ALPR")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.opts.Command, a.args(path)...)
	cmd.WaitDelay = waitDelay
	out, err := cmd.Output()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		a.log.Warn().Dur("timeout", a.opts.Timeout).Msg("ALPR command timed out")
		return nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		a.missing.Store(true)
		a.log.Warn().Str("command", a.opts.Command).Msg("ALPR not found, external detection disabled")
		return nil
	case err != nil:
		a.log.Warn().Err(err).Msg("error running ALPR")
		return nil
	}

	hits, err := ParseALPR(out)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to parse ALPR JSON output")
		return nil
	}
	return hits
}

func (a *ALPRCommand) args(imagePath string) []string {
	args := []string{"-j"}
	if a.opts.Country != "" {
		args = append(args, "-c", a.opts.Country)
	}
	if a.opts.ConfigFile != "" {
		args = append(args, "--config", a.opts.ConfigFile)
	}
	return append(args, imagePath)
}

type alprOutput struct {
	Results []struct {
		Plate      string  `json:"plate"`
		Confidence float64 `json:"confidence"`
	} `json:"results"`
}

// ParseALPR decodes the tool's JSON report. Reads that do not look like a
// plate are dropped; confidences on the 0-100 scale are brought into [0,1].
func ParseALPR(data []byte) ([]PlateHit, error) {
	var out alprOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode ALPR output: %w", err)
	}
	var hits []PlateHit
	for _, r := range out.Results {
		text := strings.TrimSpace(r.Plate)
		if text == "" || !plate.IsValidFormat(text) {
			continue
		}
		hits = append(hits, PlateHit{
			Text:       plate.Normalize(text),
			Confidence: unitConfidence(r.Confidence),
		})
	}
	return hits, nil
}

func unitConfidence(c float64) float64 {
	if c > 1 {
		c /= 100
	}
	return min(max(c, 0), 1)
}

var (
	_ External = Disabled{}
	_ External = (*ALPRCommand)(nil)
)
