package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"plate-match/internal/plate"
)

var reasons = []string{
	"Video quality is too low",
	"License plates are not clearly visible",
	"Lighting conditions are poor",
	"License plates are at extreme angles",
}

// Detections renders a video result with no target plate.
func Detections(res *plate.VideoResult) string {
	if !res.Success {
		return failure(res.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Video Analysis Complete] Processed %d frames.\n\n", res.TotalFramesProcessed)
	b.WriteString("Analysis Summary:\n")
	fmt.Fprintf(&b, "- Frames with detections: %d/%d\n", res.Debug.FramesWithDetections, res.TotalFramesProcessed)
	fmt.Fprintf(&b, "- Total detections found: %d\n", res.Debug.TotalDetections)
	if m := methodCounts(res.Debug); m != "" {
		fmt.Fprintf(&b, "- Detection methods used: %s\n", m)
	}
	b.WriteString("\n")

	if len(res.DetectedPlates) == 0 {
		b.WriteString("No license plates detected in the video.\n\n")
		b.WriteString("Troubleshooting Tips:\n")
		b.WriteString("- Ensure the video has clear, well-lit license plates\n")
		b.WriteString("- License plates should be clearly visible and not at extreme angles\n")
		b.WriteString("- Try uploading a higher quality video\n")
		b.WriteString("- Make sure the license plate is not blurry or obstructed\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Detected %d unique license plate(s):\n", len(res.DetectedPlates))
	b.WriteString(PlateTable(res.DetectedPlates))
	b.WriteString("\n")
	return b.String()
}

// Match renders a single-target result.
func Match(res *plate.VideoResult) string {
	if !res.Success {
		return failure(res.Error)
	}
	if res.Match == nil {
		return Detections(res)
	}

	m := res.Match
	var b strings.Builder
	switch {
	case m.IsExact():
		b.WriteString("EXACT MATCH FOUND!\n")
		fmt.Fprintf(&b, "User Plate: %s\n", m.UserPlate)
		fmt.Fprintf(&b, "Detected Plate: %s\n", detectedText(m.DetectedPlate))
		fmt.Fprintf(&b, "Confidence: %.2f\n", m.Confidence)
	case m.MatchFound:
		b.WriteString("PARTIAL MATCH FOUND!\n")
		fmt.Fprintf(&b, "User Plate: %s\n", m.UserPlate)
		fmt.Fprintf(&b, "Detected Plate: %s\n", detectedText(m.DetectedPlate))
		fmt.Fprintf(&b, "Similarity: %.2f\n", m.Confidence)
	default:
		b.WriteString("NO MATCH FOUND\n")
		fmt.Fprintf(&b, "User Plate: %s\n", m.UserPlate)
		texts := plateTexts(res.DetectedPlates)
		if len(texts) == 0 {
			b.WriteString("Detected Plates: None\n")
		} else {
			fmt.Fprintf(&b, "Detected Plates: %s\n", strings.Join(texts, ", "))
		}
	}

	b.WriteString("\nAnalysis Summary:\n")
	fmt.Fprintf(&b, "- Total frames processed: %d\n", res.TotalFramesProcessed)
	fmt.Fprintf(&b, "- Frames with detections: %d\n", res.Debug.FramesWithDetections)
	fmt.Fprintf(&b, "- Unique plates found: %d\n", res.UniquePlateCount)

	if len(res.DetectedPlates) == 0 {
		b.WriteString("\nNo plates detected. Possible reasons:\n")
		writeReasons(&b)
		b.WriteString("- Video resolution is too low\n")
	}
	return b.String()
}

// Vehicles renders a multi-target result for a claim message.
func Vehicles(res *plate.MultiResult, message string) string {
	if !res.Success {
		return failure(res.Error)
	}

	var b strings.Builder
	b.WriteString("MULTIPLE VEHICLE PLATE ANALYSIS\n")
	fmt.Fprintf(&b, "Message: %s\n", message)
	fmt.Fprintf(&b, "Extracted vehicle numbers: %s\n\n", strings.Join(res.Vehicles.AllPlates, ", "))

	s := res.Summary
	b.WriteString("Analysis Summary:\n")
	fmt.Fprintf(&b, "- Total frames processed: %d\n", res.TotalFramesProcessed)
	fmt.Fprintf(&b, "- Plates in message: %d\n", s.TotalPlatesInMessage)
	fmt.Fprintf(&b, "- Plates found in video: %d\n", s.PlatesFoundInVideo)
	fmt.Fprintf(&b, "- Exact matches: %d\n", s.ExactMatches)
	fmt.Fprintf(&b, "- Partial matches: %d\n\n", s.PartialMatches)

	b.WriteString("Individual Plate Results:\n")
	for _, target := range res.Vehicles.AllPlates {
		m, ok := res.Matches[target]
		if !ok {
			continue
		}
		status := "[ ]"
		if m.MatchFound {
			status = "[x]"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", status, target, m.Role.Describe())
		fmt.Fprintf(&b, "   Result: %s\n", m.Message)
		if m.Context != "" {
			fmt.Fprintf(&b, "   Context: %s\n", m.Context)
		}
		b.WriteString("\n")
	}

	if len(res.AllDetectedPlates) > 0 {
		b.WriteString("All Plates Detected in Video:\n")
		for i, p := range res.AllDetectedPlates {
			fmt.Fprintf(&b, "  %d. '%s' (conf: %.2f, frame: %d)\n", i+1, p.Text, p.Confidence, p.FrameNumber)
		}
	}

	switch {
	case s.PlatesFoundInVideo == 0:
		b.WriteString("\nNo plates from the message were found in the video.\n")
		b.WriteString("Possible reasons:\n")
		writeReasons(&b)
	case s.ExactMatches > 0:
		fmt.Fprintf(&b, "\nSuccessfully found exact matches for %d vehicle(s)!\n", s.ExactMatches)
	default:
		fmt.Fprintf(&b, "\nFound partial matches for %d vehicle(s).\n", s.PartialMatches)
		b.WriteString("Please verify the detected plates manually.\n")
	}
	return b.String()
}

// NoVehicleNumbers is the answer when a message holds no plate numbers.
func NoVehicleNumbers(message string) string {
	return fmt.Sprintf("[No vehicle numbers found in message: '%s']", message)
}

// PlateTable renders detections as a table.
func PlateTable(plates []plate.DetectedPlate) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Plate", "Confidence", "Frame", "Method", "Format"})
	for i, p := range plates {
		format := "invalid"
		if p.IsValidFormat {
			format = "valid"
		}
		tw.AppendRow(table.Row{i + 1, p.Text, fmt.Sprintf("%.2f", p.Confidence), p.FrameNumber, p.Method.String(), format})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func failure(msg string) string {
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("[Video Processing Error: %s]", msg)
}

func methodCounts(d plate.DebugInfo) string {
	var parts []string
	for _, m := range []plate.Method{plate.MethodExternal, plate.MethodMorphological, plate.MethodEdges, plate.MethodAdaptiveThresh} {
		if n := d.DetectionMethods[m]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s(%d)", m, n))
		}
	}
	return strings.Join(parts, ", ")
}

func detectedText(p *plate.DetectedPlate) string {
	if p == nil || p.Text == "" {
		return "Unknown"
	}
	return p.Text
}

func plateTexts(plates []plate.DetectedPlate) []string {
	out := make([]string, 0, len(plates))
	for _, p := range plates {
		out = append(out, p.Text)
	}
	return out
}

func writeReasons(b *strings.Builder) {
	for _, r := range reasons {
		fmt.Fprintf(b, "- %s\n", r)
	}
}
