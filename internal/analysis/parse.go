package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Parser turns the model's raw reply into a Verdict. The model is told to
// emit raw JSON only, but replies arrive code-fenced, wrapped in prose, or
// truncated mid-object by the output-token budget. Parsing is staged:
// fence stripping, then a strict JSON parse, then field-level fallback
// extraction. A fallback Verdict is marked Truncated.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

func (p *Parser) Parse(raw string) *Verdict {
	clean := stripFences(strings.TrimSpace(raw))

	v := &Verdict{}
	if err := json.Unmarshal([]byte(clean), v); err == nil {
		if _, known := severityLevels[v.Severity]; !known {
			// Severity must always be one of the four levels.
			v.Severity = SeverityMonitor
		}
		if v.Hazards == nil {
			v.Hazards = []string{}
		}
		return v
	}

	return extractFallback(raw)
}

func stripFences(clean string) string {
	if m := fenceRe.FindStringSubmatch(clean); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(clean, "```") {
		var kept []string
		for _, line := range strings.Split(clean, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		return strings.Join(kept, "\n")
	}
	return clean
}

// Fallback extraction. Severity sits first in the schema, so even a reply
// cut off by the token limit usually carries the most safety-critical
// field intact. Each extractor is independently optional; missing fields
// keep their conservative defaults.

var (
	severityRe    = regexp.MustCompile(`"severity"\s*:\s*"(\w+)"`)
	descriptionRe = regexp.MustCompile(`"description"\s*:\s*"([^"]*)"`)
	horseStateRe  = regexp.MustCompile(`"horse_state"\s*:\s*"([^"]*)"`)
	confidenceRe  = regexp.MustCompile(`"confidence"\s*:\s*([\d.]+)`)
	actionRe      = regexp.MustCompile(`"recommended_action"\s*:\s*"([^"]*)"`)
	hazardsRe     = regexp.MustCompile(`(?s)"hazards"\s*:\s*\[(.*?)\]`)
	quotedRe      = regexp.MustCompile(`"([^"]+)"`)
)

var fallbackExtractors = []func(raw string, v *Verdict){
	extractSeverity,
	extractDescription,
	extractHorseState,
	extractConfidence,
	extractAction,
	extractHazards,
}

func extractFallback(raw string) *Verdict {
	v := &Verdict{
		Severity:          SeverityMonitor,
		Description:       truncate(raw, 200),
		Hazards:           []string{},
		HorseState:        "unknown",
		Confidence:        0.5,
		RecommendedAction: "log",
		Truncated:         true,
	}
	for _, extract := range fallbackExtractors {
		extract(raw, v)
	}
	return v
}

func extractSeverity(raw string, v *Verdict) {
	m := severityRe.FindStringSubmatch(raw)
	if m == nil {
		return
	}
	if _, known := severityLevels[Severity(m[1])]; known {
		v.Severity = Severity(m[1])
	}
}

func extractDescription(raw string, v *Verdict) {
	if m := descriptionRe.FindStringSubmatch(raw); m != nil {
		v.Description = m[1]
	}
}

func extractHorseState(raw string, v *Verdict) {
	if m := horseStateRe.FindStringSubmatch(raw); m != nil {
		v.HorseState = m[1]
	}
}

func extractConfidence(raw string, v *Verdict) {
	m := confidenceRe.FindStringSubmatch(raw)
	if m == nil {
		return
	}
	if conf, err := strconv.ParseFloat(m[1], 64); err == nil {
		v.Confidence = conf
	}
}

func extractAction(raw string, v *Verdict) {
	if m := actionRe.FindStringSubmatch(raw); m != nil {
		v.RecommendedAction = m[1]
	}
}

func extractHazards(raw string, v *Verdict) {
	m := hazardsRe.FindStringSubmatch(raw)
	if m == nil {
		return
	}
	for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
		v.Hazards = append(v.Hazards, q[1])
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
