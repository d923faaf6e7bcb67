package plate

import (
	"fmt"
	"strings"
)

// FuzzyThreshold is the similarity a candidate must exceed to count as a
// partial match.
const FuzzyThreshold = 0.7

// Similarity is the share of target characters that also occur somewhere in
// detected, divided by the longer of the two lengths. It ignores order and
// counts repeated characters once per occurrence in target.
func Similarity(detected, target string) float64 {
	if detected == "" || target == "" {
		return 0
	}
	common := 0
	for _, c := range target {
		if strings.ContainsRune(detected, c) {
			common++
		}
	}
	maxLen := max(len(detected), len(target))
	return float64(common) / float64(maxLen)
}

// Match compares the detected plates of a video with one target plate.
func Match(detected []DetectedPlate, target string) MatchResult {
	if len(detected) == 0 {
		return MatchResult{
			UserPlate: target,
			Message:   "No license plates detected in the video",
			Context:   fmt.Sprintf("Searching for plate: %s", target),
		}
	}

	want := Normalize(target)

	var best *DetectedPlate
	bestScore := 0.0
	for i := range detected {
		p := &detected[i]
		if p.Placeholder || p.Text == "" {
			continue
		}
		got := Normalize(p.Text)
		if got == want {
			exact := true
			found := *p
			return MatchResult{
				MatchFound:    true,
				ExactMatch:    &exact,
				DetectedPlate: &found,
				UserPlate:     target,
				Confidence:    p.Confidence,
				Message:       fmt.Sprintf("Exact match found: %s", p.Text),
				Context:       fmt.Sprintf("Exact match for %s found in frame %s", target, frameLabel(p.FrameNumber)),
			}
		}
		if score := Similarity(got, want); score > bestScore {
			bestScore = score
			best = p
		}
	}

	if best != nil && bestScore > FuzzyThreshold {
		exact := false
		found := *best
		return MatchResult{
			MatchFound:    true,
			ExactMatch:    &exact,
			DetectedPlate: &found,
			UserPlate:     target,
			Confidence:    bestScore,
			Message:       fmt.Sprintf("Partial match found: %s (similarity: %.2f)", best.Text, bestScore),
			Context:       fmt.Sprintf("Partial match for %s found in frame %s", target, frameLabel(best.FrameNumber)),
		}
	}

	texts := make([]string, 0, len(detected))
	for _, p := range detected {
		texts = append(texts, textOrUnknown(p.Text))
	}
	return MatchResult{
		UserPlate:      target,
		Message:        "No matching license plate found in the video",
		Context:        fmt.Sprintf("No match found for %s in video", target),
		DetectedPlates: texts,
	}
}

// MatchAll runs Match for every plate in info and tags the user and other
// vehicle entries with their role.
func MatchAll(detected []DetectedPlate, info VehicleInfo) (map[string]MatchResult, Summary) {
	matches := make(map[string]MatchResult, len(info.AllPlates))
	summary := Summary{TotalPlatesInMessage: len(info.AllPlates)}

	for _, target := range info.AllPlates {
		res := Match(detected, target)
		matches[target] = res
		if !res.MatchFound {
			continue
		}
		summary.PlatesFoundInVideo++
		if res.IsExact() {
			summary.ExactMatches++
		} else {
			summary.PartialMatches++
		}
	}

	tagRole(matches, info.UserVehicle, RoleUserVehicle, "User's vehicle")
	tagRole(matches, info.OtherVehicle, RoleOtherVehicle, "Other vehicle involved")
	return matches, summary
}

func tagRole(matches map[string]MatchResult, target string, role Role, label string) {
	if target == "" {
		return
	}
	res, ok := matches[target]
	if !ok {
		return
	}
	res.Role = role
	if res.MatchFound {
		res.Context = fmt.Sprintf("%s (%s) found in video", label, target)
	} else {
		res.Context = fmt.Sprintf("%s (%s) not found in video", label, target)
	}
	matches[target] = res
}

func frameLabel(n int) string {
	if n <= 0 {
		return "Unknown"
	}
	return fmt.Sprint(n)
}

func textOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
