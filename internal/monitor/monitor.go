package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oakhollow/barnwatch/internal/analysis"
	"github.com/oakhollow/barnwatch/internal/notify"
	"github.com/oakhollow/barnwatch/internal/timeline"
)

// FrameSource is the external frame-extraction collaborator.
type FrameSource interface {
	Duration(ctx context.Context, videoPath string) (float64, error)
	FrameAt(ctx context.Context, source string, timestamp float64, outPath string) error
	Capture(ctx context.Context, rtspURL, outPath string) error
}

// FrameAnalyzer runs the per-frame pipeline.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, frame analysis.Frame) (*analysis.Verdict, error)
}

// SessionStore persists a finished session. Optional.
type SessionStore interface {
	SaveSession(ctx context.Context, tl *timeline.Timeline, mode string, alerts int, startedAt, finishedAt time.Time) error
}

type Config struct {
	Interval     time.Duration
	MaxFrames    int
	OutputDir    string
	AlertEnabled bool
	AlertTimeout time.Duration
}

// Monitor drives the analyzer over a frame sequence: extraction, analysis,
// alerting, pacing. One frame in flight at a time; cancellation is checked
// at each state transition and a partial timeline is always finalized.
type Monitor struct {
	analyzer  FrameAnalyzer
	extractor FrameSource
	notifier  notify.Notifier
	policy    *analysis.Policy
	store     SessionStore
	log       *zap.Logger
	cfg       Config

	timeline *timeline.Timeline
	alerts   atomic.Int64
}

func New(analyzer FrameAnalyzer, extractor FrameSource, notifier notify.Notifier, store SessionStore, cfg Config, log *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = 10 * time.Second
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "monitoring_output"
	}
	return &Monitor{
		analyzer:  analyzer,
		extractor: extractor,
		notifier:  notifier,
		policy:    analysis.NewPolicy(),
		store:     store,
		log:       log,
		cfg:       cfg,
		timeline:  timeline.New(""),
	}
}

// Timeline exposes the live session for the status server.
func (m *Monitor) Timeline() *timeline.Timeline {
	return m.timeline
}

func (m *Monitor) Alerts() int {
	return int(m.alerts.Load())
}

var severityColors = map[analysis.Severity]string{
	analysis.SeveritySafe:    "\033[92m",
	analysis.SeverityMonitor: "\033[93m",
	analysis.SeverityWarning: "\033[91m",
	analysis.SeverityDanger:  "\033[1;91m",
}

const colorReset = "\033[0m"

// RunVideo analyzes a video file at fixed timestamp intervals. An
// undeterminable duration is fatal; everything else skips the slot.
func (m *Monitor) RunVideo(ctx context.Context, videoPath string) (timeline.Summary, error) {
	started := time.Now()

	duration, err := m.extractor.Duration(ctx, videoPath)
	if err != nil {
		return timeline.Summary{}, fmt.Errorf("could not determine video duration: %w", err)
	}
	if duration <= 0 {
		return timeline.Summary{}, fmt.Errorf("could not determine video duration for %s", videoPath)
	}
	if err := os.MkdirAll(m.cfg.OutputDir, 0755); err != nil {
		return timeline.Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	m.timeline.SetSource(videoPath)

	interval := m.cfg.Interval.Seconds()
	fmt.Printf("\n🐴 Horse Barn Monitor — Video Mode\n")
	fmt.Printf("Video: %s (%.1fs)\n", videoPath, duration)
	fmt.Printf("Analyzing every %.0fs → ~%d frames\n", interval, int(duration/interval))
	fmt.Printf("Alerts: %s\n", onOff(m.cfg.AlertEnabled))
	fmt.Println(strings.Repeat("=", 60))

	frameNum := 0
	for t := 0.0; t < duration; t += interval {
		if ctx.Err() != nil {
			break
		}
		frameNum++
		framePath := filepath.Join(m.cfg.OutputDir, fmt.Sprintf("frame_%04d.jpg", frameNum))

		if err := m.extractor.FrameAt(ctx, videoPath, t, framePath); err != nil {
			m.log.Warn("frame extraction failed", zap.Float64("timestamp", t), zap.Error(err))
			fmt.Printf("[%6.1fs] failed to extract frame\n", t)
			continue
		}

		fmt.Printf("[%02d:%02d] Frame %d... ", int(t)/60, int(t)%60, frameNum)
		m.analyzeFrame(ctx, framePath, t, true)
	}

	return m.finish("video", started, "timeline.json")
}

// RunCamera polls a live RTSP stream until canceled or the frame cap is
// reached. Waits are latency-aware: a slow inference call shortens the
// next sleep down to zero rather than stacking delay.
func (m *Monitor) RunCamera(ctx context.Context, rtspURL string) (timeline.Summary, error) {
	started := time.Now()

	if err := os.MkdirAll(m.cfg.OutputDir, 0755); err != nil {
		return timeline.Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	m.timeline.SetSource(rtspURL)

	fmt.Printf("\n🐴 Horse Barn Monitor — Live Camera Mode\n")
	fmt.Printf("Camera: %s\n", excerpt(rtspURL, 50))
	fmt.Printf("Interval: %.0fs\n", m.cfg.Interval.Seconds())
	fmt.Printf("Alerts: %s\n", onOff(m.cfg.AlertEnabled))
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Press Ctrl+C to stop")

	frameNum := 0
	for ctx.Err() == nil {
		if m.cfg.MaxFrames > 0 && frameNum >= m.cfg.MaxFrames {
			break
		}
		frameNum++
		framePath := filepath.Join(m.cfg.OutputDir, fmt.Sprintf("live_%04d.jpg", frameNum))

		if err := m.extractor.Capture(ctx, rtspURL, framePath); err != nil {
			m.log.Warn("capture failed", zap.Int("frame", frameNum), zap.Error(err))
			fmt.Printf("[frame %d] capture failed, retrying in %.0fs...\n", frameNum, m.cfg.Interval.Seconds())
			if !m.sleep(ctx, m.cfg.Interval) {
				break
			}
			continue
		}

		fmt.Printf("[%s] Frame %d... ", time.Now().Format("15:04:05"), frameNum)
		latency, _ := m.analyzeFrame(ctx, framePath, 0, false)

		if !m.sleep(ctx, pacingDelay(m.cfg.Interval, latency)) {
			break
		}
	}

	return m.finish("camera", started, "live_timeline.json")
}

// RunDirectory analyzes the sorted .jpg frames in a directory, optionally
// sampling N frames evenly.
func (m *Monitor) RunDirectory(ctx context.Context, dir string, sample int) (timeline.Summary, error) {
	started := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return timeline.Summary{}, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var frames []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".jpg") {
			frames = append(frames, entry.Name())
		}
	}
	if len(frames) == 0 {
		return timeline.Summary{}, fmt.Errorf("no .jpg frames found in %s", dir)
	}
	sort.Strings(frames)

	if sample > 0 {
		frames = sampleEvenly(frames, sample)
	}
	m.timeline.SetSource(dir)

	fmt.Printf("\nAnalyzing %d frames from %s\n", len(frames), dir)
	fmt.Println(strings.Repeat("=", 60))

	for i, name := range frames {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("[%d/%d] %s... ", i+1, len(frames), name)
		m.analyzeFrame(ctx, filepath.Join(dir, name), 0, false)
	}

	return m.finish("directory", started, "analysis_results.json")
}

// RunFrame analyzes a single still image.
func (m *Monitor) RunFrame(ctx context.Context, framePath string) (*analysis.Verdict, error) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	v, err := m.analyzer.Analyze(ctx, analysis.Frame{
		ID:     filepath.Base(framePath),
		Source: framePath,
		Data:   data,
	})
	if err != nil {
		return nil, err
	}

	m.maybeAlert(v)
	return v, nil
}

func (m *Monitor) analyzeFrame(ctx context.Context, framePath string, videoTS float64, stampVideoTS bool) (time.Duration, bool) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		f := &analysis.Failure{
			Kind:      analysis.FailExtraction,
			Cause:     fmt.Sprintf("failed to read frame: %v", err),
			Frame:     filepath.Base(framePath),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		m.timeline.AddFailure(f)
		fmt.Printf("ERROR: %s\n", f.Cause)
		return 0, false
	}

	frame := analysis.Frame{
		ID:     filepath.Base(framePath),
		Source: m.timeline.Source(),
		Data:   data,
	}

	v, err := m.analyzer.Analyze(ctx, frame)
	if err != nil {
		var f *analysis.Failure
		if !errors.As(err, &f) {
			f = &analysis.Failure{
				Kind:      analysis.FailInference,
				Cause:     err.Error(),
				Frame:     frame.ID,
				Timestamp: time.Now().Format(time.RFC3339),
			}
		}
		m.timeline.AddFailure(f)
		m.log.Warn("frame analysis failed",
			zap.String("frame", frame.ID),
			zap.String("kind", string(f.Kind)),
			zap.String("cause", f.Cause))
		fmt.Printf("ERROR: %s\n", f.Cause)
		return time.Duration(f.LatencySeconds * float64(time.Second)), false
	}

	if stampVideoTS {
		v.VideoTimestampS = videoTS
	}
	m.timeline.AddVerdict(v)
	m.printStatus(v)
	m.maybeAlert(v)

	return time.Duration(v.LatencySeconds * float64(time.Second)), true
}

func (m *Monitor) maybeAlert(v *analysis.Verdict) {
	if !m.policy.ShouldAlert(m.policy.Level(v.Severity)) {
		return
	}
	m.alerts.Add(1)

	if !m.cfg.AlertEnabled || m.notifier == nil {
		return
	}

	// Alerts use their own context: a canceled run still flushes the
	// last alert, and a hung transport cannot stall the loop past the
	// dispatch timeout.
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AlertTimeout)
	defer cancel()

	if err := m.notifier.SendAlert(ctx, v); err != nil {
		m.log.Warn("alert dispatch failed", zap.String("frame", v.Frame), zap.Error(err))
	}
}

func (m *Monitor) printStatus(v *analysis.Verdict) {
	color := severityColors[v.Severity]
	fmt.Printf("%s%-8s%s [%-12s] %s (%.1fs)\n",
		color, v.Severity, colorReset, v.HorseState, excerpt(v.Description, 60), v.LatencySeconds)
}

func (m *Monitor) finish(mode string, started time.Time, filename string) (timeline.Summary, error) {
	summary := m.timeline.Summary()

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("Summary: %d frames analyzed", summary.Frames)
	if summary.Errors > 0 {
		fmt.Printf(", %d errors", summary.Errors)
	}
	fmt.Println()
	fmt.Printf("  SAFE: %d  MONITOR: %d  WARNING: %d  DANGER: %d\n",
		summary.Safe, summary.Monitor, summary.Warning, summary.Danger)
	if alerts := m.alerts.Load(); alerts > 0 {
		fmt.Printf("  Alerts: %d\n", alerts)
	}
	if summary.MeanLatency > 0 {
		fmt.Printf("  Avg latency: %.1fs\n", summary.MeanLatency)
	}

	if m.timeline.Len() > 0 {
		outPath := filepath.Join(m.cfg.OutputDir, filename)
		if err := m.timeline.Save(outPath); err != nil {
			m.log.Error("failed to save timeline", zap.Error(err))
		} else {
			fmt.Printf("\nTimeline saved to %s\n", outPath)
		}
	}

	if m.store != nil && m.timeline.Len() > 0 {
		// The run context may already be canceled on interrupt; the
		// session is persisted regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.store.SaveSession(ctx, m.timeline, mode, int(m.alerts.Load()), started, time.Now()); err != nil {
			m.log.Error("failed to persist session", zap.Error(err))
		}
	}

	return summary, nil
}

// pacingDelay is the wait before the next capture: the configured interval
// minus observed latency, floored at zero.
func pacingDelay(interval, latency time.Duration) time.Duration {
	wait := interval - latency
	if wait < 0 {
		return 0
	}
	return wait
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func sampleEvenly(frames []string, n int) []string {
	if n <= 0 || len(frames) <= n {
		return frames
	}
	step := len(frames) / n
	if step < 1 {
		step = 1
	}
	out := make([]string, 0, n)
	for i := 0; i < len(frames) && len(out) < n; i += step {
		out = append(out, frames[i])
	}
	return out
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
