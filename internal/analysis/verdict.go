package analysis

import "fmt"

// Severity is the ordinal hazard level for one frame.
type Severity string

const (
	SeveritySafe    Severity = "SAFE"
	SeverityMonitor Severity = "MONITOR"
	SeverityWarning Severity = "WARNING"
	SeverityDanger  Severity = "DANGER"
)

var severityLevels = map[Severity]int{
	SeveritySafe:    0,
	SeverityMonitor: 1,
	SeverityWarning: 2,
	SeverityDanger:  3,
}

// Verdict is the structured safety judgment for one frame. Severity is
// always one of the four known levels; Truncated marks verdicts recovered
// through field-level fallback extraction instead of a full JSON parse.
type Verdict struct {
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	Hazards           []string `json:"hazards"`
	HorseState        string   `json:"horse_state"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction string   `json:"recommended_action"`
	Truncated         bool     `json:"truncated,omitempty"`

	LatencySeconds  float64 `json:"latency_seconds,omitempty"`
	Frame           string  `json:"frame,omitempty"`
	Timestamp       string  `json:"timestamp,omitempty"`
	VideoTimestampS float64 `json:"video_timestamp_s,omitempty"`
}

// Frame is a single still image plus its provenance.
type Frame struct {
	ID     string
	Source string
	Data   []byte
}

type FailureKind string

const (
	FailEncode       FailureKind = "encode"
	FailInference    FailureKind = "inference"
	FailExtraction   FailureKind = "extraction"
	FailNotification FailureKind = "notification"
)

// Failure is the sentinel result for a frame whose encoding or inference
// call failed outright. Degraded parsing is not a Failure; it yields a
// Verdict with Truncated set.
type Failure struct {
	Kind           FailureKind `json:"-"`
	Cause          string      `json:"error"`
	Frame          string      `json:"frame,omitempty"`
	Timestamp      string      `json:"timestamp,omitempty"`
	LatencySeconds float64     `json:"latency_seconds,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Cause)
}
