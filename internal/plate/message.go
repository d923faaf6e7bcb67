package plate

import (
	"regexp"
	"strings"
)

var messagePatterns = compileAll(append(append([]string{}, regionalPatterns...), anyAlnumPattern))

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// ExtractVehicleNumbers scans a free-text message for plate numbers. The first
// unique hit is the user's vehicle, the second the other vehicle.
//
// Every pattern runs over the whole message, so the loose pattern may add
// substrings of plates the regional patterns already found. Duplicates are
// removed by exact string equality only.
func ExtractVehicleNumbers(message string) VehicleInfo {
	upper := strings.ToUpper(message)

	var found []string
	for _, re := range messagePatterns {
		found = append(found, re.FindAllString(upper, -1)...)
	}

	info := VehicleInfo{AllPlates: uniqueStrings(found)}
	if len(info.AllPlates) >= 1 {
		info.UserVehicle = info.AllPlates[0]
	}
	if len(info.AllPlates) >= 2 {
		info.OtherVehicle = info.AllPlates[1]
	}
	return info
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Unique drops repeated plate texts, keeping the first occurrence and the
// discovery order.
func Unique(plates []DetectedPlate) []DetectedPlate {
	out := make([]DetectedPlate, 0, len(plates))
	seen := make(map[string]struct{}, len(plates))
	for _, p := range plates {
		if p.Text == "" {
			continue
		}
		if _, ok := seen[p.Text]; ok {
			continue
		}
		seen[p.Text] = struct{}{}
		out = append(out, p)
	}
	return out
}

// LooksLikeMessage reports whether a plate field holds a free-text message
// rather than a single plate number.
func LooksLikeMessage(s string) bool {
	return strings.Contains(s, " ") || len(s) > 15
}
