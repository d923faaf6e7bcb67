package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"plate-match/internal/plate"
)

// WriteCSV writes one ';'-separated row per detection.
func WriteCSV(w io.Writer, plates []plate.DetectedPlate) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write([]string{"frame", "plate", "confidence", "method", "valid_format"}); err != nil {
		return err
	}
	for _, p := range plates {
		record := []string{
			strconv.Itoa(p.FrameNumber),
			p.Text,
			strconv.FormatFloat(p.Confidence, 'f', 2, 64),
			p.Method.String(),
			strconv.FormatBool(p.IsValidFormat),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the detections to path.
func SaveCSV(path string, plates []plate.DetectedPlate) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if err := WriteCSV(file, plates); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
