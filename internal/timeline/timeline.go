package timeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/oakhollow/barnwatch/internal/analysis"
)

// Record is one timeline entry: a Verdict, or a Failure for a frame whose
// analysis short-circuited. The persisted form is a flat JSON object; an
// "error" key marks a failure.
type Record struct {
	Verdict *analysis.Verdict
	Failure *analysis.Failure
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Failure != nil {
		return json.Marshal(r.Failure)
	}
	if r.Verdict != nil {
		return json.Marshal(r.Verdict)
	}
	return nil, fmt.Errorf("empty timeline record")
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Error != "" {
		f := &analysis.Failure{}
		if err := json.Unmarshal(data, f); err != nil {
			return err
		}
		r.Failure = f
		return nil
	}

	v := &analysis.Verdict{}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	r.Verdict = v
	return nil
}

// Summary aggregates one session's records.
type Summary struct {
	Frames      int     `json:"frames"`
	Safe        int     `json:"safe"`
	Monitor     int     `json:"monitor"`
	Warning     int     `json:"warning"`
	Danger      int     `json:"danger"`
	Errors      int     `json:"errors"`
	MeanLatency float64 `json:"mean_latency_seconds"`
}

// Timeline is the append-only record sequence for one monitoring session.
// The polling loop is the only writer; the mutex exists for the status
// server's read-only snapshots.
type Timeline struct {
	mu        sync.Mutex
	sessionID string
	source    string
	records   []Record
}

func New(source string) *Timeline {
	return &Timeline{
		sessionID: uuid.New().String(),
		source:    source,
	}
}

func (t *Timeline) SessionID() string {
	return t.sessionID
}

func (t *Timeline) Source() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source
}

func (t *Timeline) SetSource(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = source
}

func (t *Timeline) AddVerdict(v *analysis.Verdict) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, Record{Verdict: v})
}

func (t *Timeline) AddFailure(f *analysis.Failure) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, Record{Failure: f})
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Records returns a snapshot copy of the record sequence.
func (t *Timeline) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Timeline) Summary() Summary {
	records := t.Records()

	var s Summary
	var latencySum float64
	var latencyCount int

	for _, rec := range records {
		if rec.Failure != nil {
			s.Errors++
			continue
		}
		s.Frames++
		switch rec.Verdict.Severity {
		case analysis.SeveritySafe:
			s.Safe++
		case analysis.SeverityMonitor:
			s.Monitor++
		case analysis.SeverityWarning:
			s.Warning++
		case analysis.SeverityDanger:
			s.Danger++
		}
		if rec.Verdict.LatencySeconds > 0 {
			latencySum += rec.Verdict.LatencySeconds
			latencyCount++
		}
	}

	if latencyCount > 0 {
		s.MeanLatency = latencySum / float64(latencyCount)
	}
	return s
}

// Save writes the ordered record array to path as indented JSON.
func (t *Timeline) Save(path string) error {
	records := t.Records()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create timeline directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create timeline file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	return nil
}

// Load reads a persisted timeline back into its record sequence.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}
	return records, nil
}
