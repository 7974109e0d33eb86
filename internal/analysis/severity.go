package analysis

// Policy maps severities to ordinal levels and owns the alert threshold,
// so the WARNING cutoff is a single tunable point.
type Policy struct {
	threshold int
}

func NewPolicy() *Policy {
	return &Policy{threshold: severityLevels[SeverityWarning]}
}

// Level returns the ordinal for a severity. Unknown labels map to 0,
// distinct from SAFE only in name: they are treated as defensive-low.
func (p *Policy) Level(s Severity) int {
	if lvl, ok := severityLevels[s]; ok {
		return lvl
	}
	return 0
}

// ShouldAlert reports whether a level warrants an alert (WARNING or above).
func (p *Policy) ShouldAlert(level int) bool {
	return level >= p.threshold
}
