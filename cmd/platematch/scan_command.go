package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plate-match/internal/plate"
	"plate-match/internal/report"
)

type scanOptions struct {
	plate     string
	message   string
	maxFrames int
	json      bool
	csvPath   string
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <video>",
		Short: "Detect plates in a video, optionally matching a plate or a claim message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.plate != "" && opts.message != "" {
				return errors.New("--plate and --message are mutually exclusive")
			}
			cfg, log, err := ctx.ensure()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-frames") {
				cfg.Video.MaxFrames = opts.maxFrames
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			p, err := newPipeline(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer p.Close()

			return runScan(cmd, p, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.plate, "plate", "", "Plate number to look for, or a message with several")
	cmd.Flags().StringVar(&opts.message, "message", "", "Claim message naming the vehicles involved")
	cmd.Flags().IntVar(&opts.maxFrames, "max-frames", 8, "Maximum number of frames to sample")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Write detected plates to a CSV file")
	return cmd
}

func runScan(cmd *cobra.Command, p *pipeline, path string, opts scanOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	message := strings.TrimSpace(opts.message)
	target := strings.TrimSpace(opts.plate)
	if message == "" && plate.LooksLikeMessage(target) {
		message, target = target, ""
	}

	if message != "" {
		info := plate.ExtractVehicleNumbers(message)
		if len(info.AllPlates) == 0 {
			if opts.json {
				return writeJSON(cmd, info)
			}
			_, err := fmt.Fprintln(out, report.NoVehicleNumbers(message))
			return err
		}
		res := p.proc.ProcessWithVehicles(ctx, path, info)
		if err := exportCSV(opts.csvPath, res.AllDetectedPlates); err != nil {
			return err
		}
		if opts.json {
			return writeJSON(cmd, res)
		}
		_, err := fmt.Fprint(out, report.Vehicles(res, message))
		return err
	}

	var res *plate.VideoResult
	var text string
	if target != "" {
		res = p.proc.ProcessWithPlate(ctx, path, target)
		text = report.Match(res)
	} else {
		res = p.proc.Process(ctx, path)
		text = report.Detections(res)
	}
	if err := exportCSV(opts.csvPath, res.DetectedPlates); err != nil {
		return err
	}
	if opts.json {
		return writeJSON(cmd, res)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}

func exportCSV(path string, plates []plate.DetectedPlate) error {
	if path == "" {
		return nil
	}
	return report.SaveCSV(path, plates)
}
