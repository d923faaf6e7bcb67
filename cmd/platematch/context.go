package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"plate-match/internal/config"
	"plate-match/internal/detect"
	"plate-match/internal/logging"
	"plate-match/internal/ocr"
	"plate-match/internal/processor"
	"plate-match/internal/video"
)

type commandContext struct {
	configFlag *string

	once   sync.Once
	config config.Config
	log    zerolog.Logger
	err    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensure loads the configuration and builds the logger on first use.
func (c *commandContext) ensure() (config.Config, zerolog.Logger, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, used, err := config.Load(path)
		if err != nil {
			c.err = err
			return
		}
		log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			c.err = err
			return
		}
		if used != "" {
			log.Debug().Str("config", used).Msg("configuration loaded")
		}
		c.config = cfg
		c.log = log
	})
	return c.config, c.log, c.err
}

type pipeline struct {
	proc         *processor.Processor
	ocrAvailable bool
	external     string
	engine       ocr.Engine
}

func (p *pipeline) Close() error {
	return p.engine.Close()
}

func newPipeline(ctx context.Context, cfg config.Config, log zerolog.Logger) (*pipeline, error) {
	var engine ocr.Engine = ocr.Unavailable{Reason: errors.New("disabled by configuration")}
	if cfg.OCR.Enabled {
		engine = ocr.Load(ocr.Options{Language: cfg.OCR.Language, Whitelist: cfg.OCR.Whitelist}, log)
	}
	extractor := ocr.NewExtractor(engine, log)

	external, err := newExternal(ctx, cfg.External, log)
	if err != nil {
		engine.Close()
		return nil, err
	}

	local := detect.NewLocal(extractor, cfg.Detect.PlaceholderFallback, log)
	sampler := video.NewSampler(cfg.Video.MaxFrames, log)

	log.Info().
		Bool("ocr_available", extractor.Available()).
		Str("external", external.Name()).
		Int("max_frames", sampler.MaxFrames()).
		Msg("pipeline ready")

	return &pipeline{
		proc:         processor.New(sampler, external, local, log),
		ocrAvailable: extractor.Available(),
		external:     external.Name(),
		engine:       engine,
	}, nil
}

func newExternal(ctx context.Context, cfg config.External, log zerolog.Logger) (detect.External, error) {
	switch cfg.Provider {
	case config.ProviderALPR:
		return detect.NewALPRCommand(detect.ALPROptions{
			Command:    cfg.ALPR.Command,
			Country:    cfg.ALPR.Country,
			ConfigFile: cfg.ALPR.ConfigFile,
			Timeout:    cfg.Timeout,
		}, log), nil
	case config.ProviderRekognition:
		r, err := detect.NewRekognition(ctx, cfg.Rekognition.Region, cfg.Timeout, log)
		if err != nil {
			return nil, fmt.Errorf("init rekognition: %w", err)
		}
		return r, nil
	default:
		return detect.Disabled{}, nil
	}
}
