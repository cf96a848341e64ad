package match

import "strings"

// Seniority buckets used for experience alignment.
const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
)

var seniorMarkers = []string{"senior", "lead", "principal", "staff", "architect", "manager", "director"}
var midMarkers = []string{"mid level", "mid-level", "intermediate"}
var entryMarkers = []string{"entry level", "entry-level", "junior", "intern", "graduate"}

// DetectJobLevel infers the seniority a posting asks for from its
// title and description. Unmarked postings default to entry.
func DetectJobLevel(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, m := range seniorMarkers {
		if strings.Contains(text, m) {
			return LevelSenior
		}
	}
	for _, m := range midMarkers {
		if strings.Contains(text, m) {
			return LevelMid
		}
	}
	for _, m := range entryMarkers {
		if strings.Contains(text, m) {
			return LevelEntry
		}
	}
	return LevelEntry
}

// DetectResumeLevel infers a candidate's seniority from resume text.
// Explicit title markers win; otherwise a count of generic experience
// indicators nudges the level to mid.
func DetectResumeLevel(resume string) string {
	lower := strings.ToLower(resume)
	for _, m := range seniorMarkers {
		if strings.Contains(lower, m) {
			return LevelSenior
		}
	}

	indicators := []string{"years of experience", "experience", "worked", "developed", "managed", "built", "shipped"}
	count := 0
	for _, in := range indicators {
		if strings.Contains(lower, in) {
			count++
		}
	}
	if count > 3 {
		return LevelMid
	}
	return LevelEntry
}

// ExperienceAlignment scores how well two seniority levels line up:
// identical levels score 1.0, adjacent senior/mid 0.7, adjacent
// mid/entry 0.5, anything further apart 0.3. Unknown input gets the
// neutral 0.5.
func ExperienceAlignment(jobLevel, resumeLevel string) float64 {
	if !validLevel(jobLevel) || !validLevel(resumeLevel) {
		return 0.5
	}
	switch {
	case jobLevel == resumeLevel:
		return 1.0
	case (jobLevel == LevelSenior && resumeLevel == LevelMid) ||
		(jobLevel == LevelMid && resumeLevel == LevelSenior):
		return 0.7
	case (jobLevel == LevelEntry && resumeLevel == LevelMid) ||
		(jobLevel == LevelMid && resumeLevel == LevelEntry):
		return 0.5
	default:
		return 0.3
	}
}

func validLevel(level string) bool {
	return level == LevelEntry || level == LevelMid || level == LevelSenior
}
