package plate

import (
	"fmt"
	"image"
)

// Method identifies the pipeline that produced a detection.
type Method int

const (
	MethodMorphological Method = iota
	MethodEdges
	MethodAdaptiveThresh
	MethodExternal
)

var methodNames = [...]string{
	MethodMorphological:  "morphological",
	MethodEdges:          "edges",
	MethodAdaptiveThresh: "adaptive_thresh",
	MethodExternal:       "external",
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return "unknown"
	}
	return methodNames[m]
}

func (m Method) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(methodNames) {
		return nil, fmt.Errorf("unknown detection method %d", int(m))
	}
	return []byte(methodNames[m]), nil
}

// Role tags a target plate with the vehicle it belongs to in a claim message.
type Role int

const (
	RoleNone Role = iota
	RoleUserVehicle
	RoleOtherVehicle
)

func (r Role) String() string {
	switch r {
	case RoleUserVehicle:
		return "user_vehicle"
	case RoleOtherVehicle:
		return "other_vehicle"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Describe returns the label used in reports for the role.
func (r Role) Describe() string {
	switch r {
	case RoleUserVehicle:
		return "User's Vehicle"
	case RoleOtherVehicle:
		return "Other Vehicle Involved"
	default:
		return "Unknown"
	}
}

// BBox is the crop rectangle of a candidate region inside its frame.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func BBoxFromRect(r image.Rectangle) *BBox {
	return &BBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// DetectedPlate is a single plate read from one frame.
//
// Text is upper-case alphanumeric for every OCR or external read. Placeholder
// detections carry a PLATE_<n>CHARS label instead; they are never valid and
// never take part in matching.
type DetectedPlate struct {
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	BBox          *BBox   `json:"bbox,omitempty"`
	FrameNumber   int     `json:"frame_number"`
	Method        Method  `json:"method"`
	IsValidFormat bool    `json:"is_valid_format"`
	Placeholder   bool    `json:"placeholder,omitempty"`
}

// VehicleInfo holds the plate numbers pulled out of a free-text message.
type VehicleInfo struct {
	UserVehicle  string   `json:"user_vehicle,omitempty"`
	OtherVehicle string   `json:"other_vehicle,omitempty"`
	AllPlates    []string `json:"all_plates"`
}

// MatchResult is the verdict for one target plate against one video.
type MatchResult struct {
	MatchFound     bool           `json:"match_found"`
	ExactMatch     *bool          `json:"exact_match,omitempty"`
	DetectedPlate  *DetectedPlate `json:"detected_plate,omitempty"`
	UserPlate      string         `json:"user_plate"`
	Confidence     float64        `json:"confidence"`
	Message        string         `json:"message"`
	Context        string         `json:"context"`
	Role           Role           `json:"vehicle_type,omitempty"`
	DetectedPlates []string       `json:"detected_plates,omitempty"`
}

// IsExact reports whether the result is an exact match.
func (m MatchResult) IsExact() bool {
	return m.MatchFound && m.ExactMatch != nil && *m.ExactMatch
}

// DebugInfo carries per-video detection counters.
type DebugInfo struct {
	TotalFrames          int            `json:"total_frames"`
	FramesWithDetections int            `json:"frames_with_detections"`
	TotalDetections      int            `json:"total_detections"`
	DetectionMethods     map[Method]int `json:"detection_methods"`
	FrameErrors          int            `json:"frame_errors,omitempty"`
}

// VideoResult aggregates everything found in one video.
type VideoResult struct {
	Success              bool            `json:"success"`
	Error                string          `json:"error,omitempty"`
	TotalFramesProcessed int             `json:"total_frames_processed"`
	DetectedPlates       []DetectedPlate `json:"detected_plates"`
	UniquePlateCount     int             `json:"unique_plate_count"`
	Debug                DebugInfo       `json:"debug_info"`
	Match                *MatchResult    `json:"match,omitempty"`
}

// Summary counts the outcome of a multi-target run.
type Summary struct {
	TotalPlatesInMessage int `json:"total_plates_in_message"`
	PlatesFoundInVideo   int `json:"plates_found_in_video"`
	ExactMatches         int `json:"exact_matches"`
	PartialMatches       int `json:"partial_matches"`
}

// MultiResult is the report for several target plates in one video.
type MultiResult struct {
	Success              bool                   `json:"success"`
	Error                string                 `json:"error,omitempty"`
	VideoPath            string                 `json:"video_path"`
	Vehicles             VehicleInfo            `json:"vehicle_info"`
	TotalFramesProcessed int                    `json:"total_frames_processed"`
	AllDetectedPlates    []DetectedPlate        `json:"all_detected_plates"`
	Matches              map[string]MatchResult `json:"matches"`
	Summary              Summary                `json:"summary"`
	Debug                DebugInfo              `json:"debug_info"`
}
