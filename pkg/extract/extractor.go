// Package extract provides deterministic fact extraction from
// conversational text.
//
// The extractor is a pure function of its input: a fixed set of
// case-insensitive patterns scans one message and yields zero or more
// candidate facts. There is no model call and no randomness, so the same
// text always produces the same candidates.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Candidate keys and the memory types they belong to.
const (
	KeyTeachingPreference = "teaching_preference"
	KeyGradeLevels        = "grade_levels"
	KeySubjects           = "subjects"
	KeyTeachingStyle      = "teaching_style"
	KeyYearsExperience    = "years_experience"

	TypePreference = "preference"
	TypeContext    = "context"
)

// Candidate is one fact extracted from a message.
//
// Value is one of: string, int, []int, []string. The shape is fixed per
// Key, so callers can type-switch safely.
type Candidate struct {
	// Key names the fact, e.g. "grade_levels".
	Key string

	// Value is the fact's payload.
	Value interface{}

	// Type is the memory type the fact belongs to.
	Type string

	// Confidence is the pattern's fixed confidence score.
	Confidence float64
}

// subjectVocabulary is the fixed list of recognizable subject names,
// matched on word boundaries and reported in first-seen order.
var subjectVocabulary = []string{
	"math", "science", "english", "history", "geography",
	"reading", "writing", "art", "music", "spanish", "french",
	"biology", "chemistry", "physics", "social studies",
	"computer science", "physical education",
}

// styleFamily groups keywords that signal one teaching style. Families
// are checked in a fixed order and the first with any keyword present
// wins, so a message yields at most one style candidate.
type styleFamily struct {
	name     string
	keywords []string
}

var styleFamilies = []styleFamily{
	{"structured", []string{"structured", "systematic", "step by step", "step-by-step", "organized routine"}},
	{"collaborative", []string{"group work", "teamwork", "collaborative", "group activities", "peer learning"}},
	{"flexible", []string{"adaptable", "varied", "flexible", "go with the flow", "improvise"}},
}

var (
	preferenceRe  = regexp.MustCompile(`(?i)\b(?:i prefer|i like to)\s+([^.!?\n]+)`)
	gradeBeforeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s-]*grade\b`)
	gradeAfterRe  = regexp.MustCompile(`(?i)\bgrade[\s-]*(\d{1,2})\b`)
	subjectsRe    = buildSubjectsRe()
	yearsRe       = regexp.MustCompile(`(?i)\b(\d{1,2})\+?\s+years?\b`)
)

// yearsWindow is how far past a "N years" match the words "experience"
// or "teaching" may appear for the match to count.
const yearsWindow = 40

func buildSubjectsRe() *regexp.Regexp {
	quoted := make([]string, len(subjectVocabulary))
	for i, s := range subjectVocabulary {
		quoted[i] = regexp.QuoteMeta(s)
	}
	// Longer terms first so "social studies" beats "social".
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// Extractor scans conversational text for memorable facts.
//
// Example:
//
//	e := extract.New()
//	candidates := e.Extract("I teach 3rd grade math and prefer group work.")
//	// candidates: grade_levels=[3], subjects=[math], teaching_style=collaborative
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the candidate facts found in text, in a fixed order:
// teaching preference, grade levels, subjects, teaching style, years of
// experience. Text matching no pattern yields an empty slice; Extract
// never fails.
func (e *Extractor) Extract(text string) []Candidate {
	var candidates []Candidate

	if pref := extractPreference(text); pref != "" {
		candidates = append(candidates, Candidate{
			Key:        KeyTeachingPreference,
			Value:      pref,
			Type:       TypePreference,
			Confidence: 0.7,
		})
	}

	if grades := extractGradeLevels(text); len(grades) > 0 {
		candidates = append(candidates, Candidate{
			Key:        KeyGradeLevels,
			Value:      grades,
			Type:       TypeContext,
			Confidence: 0.9,
		})
	}

	if subjects := extractSubjects(text); len(subjects) > 0 {
		candidates = append(candidates, Candidate{
			Key:        KeySubjects,
			Value:      subjects,
			Type:       TypeContext,
			Confidence: 0.8,
		})
	}

	if style := extractTeachingStyle(text); style != "" {
		candidates = append(candidates, Candidate{
			Key:        KeyTeachingStyle,
			Value:      style,
			Type:       TypePreference,
			Confidence: 0.6,
		})
	}

	if years, ok := extractYearsExperience(text); ok {
		candidates = append(candidates, Candidate{
			Key:        KeyYearsExperience,
			Value:      years,
			Type:       TypeContext,
			Confidence: 0.9,
		})
	}

	return candidates
}

// extractPreference returns the clause following "I prefer" or
// "I like to", up to the next sentence boundary.
func extractPreference(text string) string {
	m := preferenceRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractGradeLevels collects every numeric token adjacent to the word
// "grade" in either order ("3rd grade", "Grade 5"), deduplicated in
// first-seen text order.
func extractGradeLevels(text string) []int {
	type hit struct {
		pos   int
		grade int
	}
	var hits []hit

	for _, re := range []*regexp.Regexp{gradeBeforeRe, gradeAfterRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			n, err := strconv.Atoi(text[m[2]:m[3]])
			if err != nil {
				continue
			}
			hits = append(hits, hit{pos: m[0], grade: n})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[int]bool)
	var grades []int
	for _, h := range hits {
		if !seen[h.grade] {
			seen[h.grade] = true
			grades = append(grades, h.grade)
		}
	}
	return grades
}

// extractSubjects intersects the text with the subject vocabulary,
// deduplicated in first-seen order and reported lowercased.
func extractSubjects(text string) []string {
	seen := make(map[string]bool)
	var subjects []string
	for _, m := range subjectsRe.FindAllString(text, -1) {
		subject := strings.ToLower(m)
		if !seen[subject] {
			seen[subject] = true
			subjects = append(subjects, subject)
		}
	}
	return subjects
}

// extractTeachingStyle returns the name of the first style family with
// any keyword present, or "" when none matches.
func extractTeachingStyle(text string) string {
	lower := strings.ToLower(text)
	for _, family := range styleFamilies {
		for _, keyword := range family.keywords {
			if strings.Contains(lower, keyword) {
				return family.name
			}
		}
	}
	return ""
}

// extractYearsExperience finds a numeric token followed by "years" with
// "experience" or "teaching" within a short window after it.
func extractYearsExperience(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, m := range yearsRe.FindAllStringSubmatchIndex(lower, -1) {
		end := m[1]
		window := lower[end:]
		if len(window) > yearsWindow {
			window = window[:yearsWindow]
		}
		if !strings.Contains(window, "experience") && !strings.Contains(window, "teaching") {
			continue
		}
		years, err := strconv.Atoi(lower[m[2]:m[3]])
		if err != nil {
			continue
		}
		return years, true
	}
	return 0, false
}
