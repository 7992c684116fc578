package triage

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/JoshiAarya/ai-ticket-app/internal/models"
)

// ErrInvalidResponse wraps every reason a model reply could not be used.
var ErrInvalidResponse = errors.New("invalid triage response")

var (
	jsonFence    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	genericFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
)

// Result is a structured ticket classification.
type Result struct {
	Summary       string          `json:"summary"`
	Priority      models.Priority `json:"priority"`
	HelpfulNotes  string          `json:"helpfulNotes"`
	RelatedSkills []string        `json:"relatedSkills"`
	// Fallback is set when the result was synthesized instead of classified.
	Fallback bool `json:"-"`
}

func (r Result) Classification() models.Classification {
	return models.Classification{
		Priority:      r.Priority,
		HelpfulNotes:  r.HelpfulNotes,
		RelatedSkills: r.RelatedSkills,
	}
}

// ExtractJSON returns the body of a fenced block when the text has one,
// otherwise the trimmed text itself.
func ExtractJSON(raw string) string {
	if strings.Contains(raw, "```json") {
		if m := jsonFence.FindStringSubmatch(raw); m != nil {
			return strings.TrimSpace(m[1])
		}
	} else if strings.Contains(raw, "```") {
		if m := genericFence.FindStringSubmatch(raw); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(raw)
}

// Parse decodes and validates a model reply. The priority is clamped rather
// than rejected.
func Parse(raw string) (Result, error) {
	var in struct {
		Summary       string    `json:"summary"`
		Priority      string    `json:"priority"`
		HelpfulNotes  string    `json:"helpfulNotes"`
		RelatedSkills *[]string `json:"relatedSkills"`
	}
	body := ExtractJSON(raw)
	if body == "" {
		return Result{}, fmt.Errorf("%w: empty reply", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var missing []string
	if strings.TrimSpace(in.Summary) == "" {
		missing = append(missing, "summary")
	}
	if strings.TrimSpace(in.Priority) == "" {
		missing = append(missing, "priority")
	}
	if strings.TrimSpace(in.HelpfulNotes) == "" {
		missing = append(missing, "helpfulNotes")
	}
	if in.RelatedSkills == nil {
		missing = append(missing, "relatedSkills")
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: missing %s", ErrInvalidResponse, strings.Join(missing, ", "))
	}

	return Result{
		Summary:       strings.TrimSpace(in.Summary),
		Priority:      models.NormalizePriority(in.Priority),
		HelpfulNotes:  in.HelpfulNotes,
		RelatedSkills: models.CleanSkills(*in.RelatedSkills),
	}, nil
}

// Fallback is the classification used when the model cannot be.
func Fallback(title string) Result {
	return Result{
		Summary:       "Failed to analyze ticket: " + title,
		Priority:      models.PriorityMedium,
		HelpfulNotes:  "AI analysis failed. Please review the ticket manually.",
		RelatedSkills: []string{"support", "troubleshooting"},
		Fallback:      true,
	}
}
