package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Encoder prepares frame bytes for transmission.
type Encoder interface {
	Encode(data []byte) (string, error)
}

// InferenceClient sends one encoded frame to the vision model.
type InferenceClient interface {
	Infer(ctx context.Context, imageB64, instructions, question string) (string, error)
}

// Analyzer runs the full pipeline for one frame: encode, infer, parse,
// stamp provenance. No retries here; retry and pacing belong to the
// polling loop.
type Analyzer struct {
	codec  Encoder
	client InferenceClient
	parser *Parser
	log    *zap.Logger
}

func NewAnalyzer(codec Encoder, client InferenceClient, log *zap.Logger) *Analyzer {
	return &Analyzer{
		codec:  codec,
		client: client,
		parser: NewParser(),
		log:    log,
	}
}

// Analyze returns a Verdict, or a *Failure error when encoding or the
// inference call itself fails. Degraded model output still parses into a
// Verdict with Truncated set.
func (a *Analyzer) Analyze(ctx context.Context, frame Frame) (*Verdict, error) {
	payload, err := a.codec.Encode(frame.Data)
	if err != nil {
		return nil, &Failure{
			Kind:      FailEncode,
			Cause:     fmt.Sprintf("failed to encode image: %v", err),
			Frame:     frame.ID,
			Timestamp: nowISO(),
		}
	}

	start := time.Now()
	raw, err := a.client.Infer(ctx, payload, SystemPrompt, AnalysisPrompt)
	latency := time.Since(start)
	if err != nil {
		return nil, &Failure{
			Kind:           FailInference,
			Cause:          err.Error(),
			Frame:          frame.ID,
			Timestamp:      nowISO(),
			LatencySeconds: roundLatency(latency),
		}
	}

	a.log.Debug("raw model response",
		zap.String("frame", frame.ID),
		zap.Duration("latency", latency),
		zap.String("content", truncate(raw, 200)))

	v := a.parser.Parse(raw)
	v.LatencySeconds = roundLatency(latency)
	v.Frame = frame.ID
	v.Timestamp = nowISO()
	return v, nil
}

func nowISO() string {
	return time.Now().Format(time.RFC3339)
}

func roundLatency(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
