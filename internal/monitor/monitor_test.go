package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakhollow/barnwatch/internal/analysis"
	"github.com/oakhollow/barnwatch/internal/timeline"
)

type fakeSource struct {
	duration    float64
	durationErr error
	captureErr  error
	frameTimes  []float64
	captures    int
}

func (f *fakeSource) Duration(ctx context.Context, videoPath string) (float64, error) {
	return f.duration, f.durationErr
}

func (f *fakeSource) FrameAt(ctx context.Context, source string, timestamp float64, outPath string) error {
	f.frameTimes = append(f.frameTimes, timestamp)
	return os.WriteFile(outPath, []byte("frame"), 0644)
}

func (f *fakeSource) Capture(ctx context.Context, rtspURL, outPath string) error {
	f.captures++
	if f.captureErr != nil {
		return f.captureErr
	}
	return os.WriteFile(outPath, []byte("frame"), 0644)
}

type fakeAnalyzer struct {
	fn    func(frame analysis.Frame) (*analysis.Verdict, error)
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, frame analysis.Frame) (*analysis.Verdict, error) {
	f.calls++
	return f.fn(frame)
}

type fakeNotifier struct {
	sent []*analysis.Verdict
}

func (f *fakeNotifier) SendAlert(ctx context.Context, v *analysis.Verdict) error {
	f.sent = append(f.sent, v)
	return nil
}

type fakeStore struct {
	mode   string
	alerts int
	tl     *timeline.Timeline
}

func (f *fakeStore) SaveSession(ctx context.Context, tl *timeline.Timeline, mode string, alerts int, startedAt, finishedAt time.Time) error {
	f.tl = tl
	f.mode = mode
	f.alerts = alerts
	return nil
}

func verdictWith(severity analysis.Severity) func(frame analysis.Frame) (*analysis.Verdict, error) {
	return func(frame analysis.Frame) (*analysis.Verdict, error) {
		return &analysis.Verdict{
			Severity:          severity,
			Description:       "horse in stall",
			Hazards:           []string{},
			HorseState:        "standing",
			Confidence:        0.9,
			RecommendedAction: "none",
			Frame:             frame.ID,
		}, nil
	}
}

func TestRunVideoSchedule(t *testing.T) {
	source := &fakeSource{duration: 22}
	analyzer := &fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}
	mon := New(analyzer, source, nil, nil, Config{
		Interval:  5 * time.Second,
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	summary, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	// 22s at a 5s interval covers timestamps 0..20
	assert.Equal(t, []float64{0, 5, 10, 15, 20}, source.frameTimes)
	assert.Equal(t, 5, analyzer.calls)
	assert.Equal(t, 5, summary.Frames)
	assert.Equal(t, 5, summary.Safe)
	assert.Equal(t, 0, summary.Errors)
}

func TestRunVideoStampsVideoTimestamp(t *testing.T) {
	source := &fakeSource{duration: 10}
	analyzer := &fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}
	mon := New(analyzer, source, nil, nil, Config{
		Interval:  5 * time.Second,
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	records := mon.Timeline().Records()
	require.Len(t, records, 2)
	assert.Equal(t, 0.0, records[0].Verdict.VideoTimestampS)
	assert.Equal(t, 5.0, records[1].Verdict.VideoTimestampS)
}

func TestRunVideoDurationError(t *testing.T) {
	source := &fakeSource{durationErr: errors.New("ffprobe not found")}
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}, source, nil, nil, Config{
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")
}

func TestRunVideoRecordsAnalysisFailures(t *testing.T) {
	source := &fakeSource{duration: 10}
	analyzer := &fakeAnalyzer{fn: func(frame analysis.Frame) (*analysis.Verdict, error) {
		return nil, &analysis.Failure{
			Kind:  analysis.FailInference,
			Cause: "connection refused",
			Frame: frame.ID,
		}
	}}
	notifier := &fakeNotifier{}
	mon := New(analyzer, source, notifier, nil, Config{
		Interval:     5 * time.Second,
		OutputDir:    t.TempDir(),
		AlertEnabled: true,
	}, zap.NewNop())

	summary, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Frames)
	assert.Equal(t, 2, summary.Errors)
	assert.Empty(t, notifier.sent)
	assert.Equal(t, 0, mon.Alerts())
}

func TestRunVideoSavesTimeline(t *testing.T) {
	outDir := t.TempDir()
	source := &fakeSource{duration: 10}
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}, source, nil, nil, Config{
		Interval:  5 * time.Second,
		OutputDir: outDir,
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	records, err := timeline.Load(filepath.Join(outDir, "timeline.json"))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunDirectorySampling(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 6; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i))
		require.NoError(t, os.WriteFile(path, []byte("frame"), 0644))
	}
	// non-jpg entries are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	analyzer := &fakeAnalyzer{fn: verdictWith(analysis.SeverityMonitor)}
	mon := New(analyzer, nil, nil, nil, Config{OutputDir: t.TempDir()}, zap.NewNop())

	summary, err := mon.RunDirectory(context.Background(), dir, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, analyzer.calls)
	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, 3, summary.Monitor)
}

func TestRunDirectoryEmpty(t *testing.T) {
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}, nil, nil, nil, Config{
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	_, err := mon.RunDirectory(context.Background(), t.TempDir(), 0)
	require.Error(t, err)
}

func TestRunCameraMaxFrames(t *testing.T) {
	source := &fakeSource{}
	analyzer := &fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}
	mon := New(analyzer, source, nil, nil, Config{
		Interval:  time.Millisecond,
		MaxFrames: 3,
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	summary, err := mon.RunCamera(context.Background(), "rtsp://barn.local/stream")
	require.NoError(t, err)

	assert.Equal(t, 3, source.captures)
	assert.Equal(t, 3, summary.Frames)
}

func TestRunCameraCancelKeepsPartialTimeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{}
	analyzer := &fakeAnalyzer{}
	analyzer.fn = func(frame analysis.Frame) (*analysis.Verdict, error) {
		if analyzer.calls == 2 {
			cancel()
		}
		return verdictWith(analysis.SeveritySafe)(frame)
	}

	mon := New(analyzer, source, nil, nil, Config{
		Interval:  time.Millisecond,
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	summary, err := mon.RunCamera(ctx, "rtsp://barn.local/stream")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, 2, mon.Timeline().Len())
}

func TestAlertCountingAndDispatch(t *testing.T) {
	source := &fakeSource{duration: 5}
	analyzer := &fakeAnalyzer{fn: verdictWith(analysis.SeverityDanger)}
	notifier := &fakeNotifier{}
	mon := New(analyzer, source, notifier, nil, Config{
		Interval:     5 * time.Second,
		OutputDir:    t.TempDir(),
		AlertEnabled: true,
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	assert.Equal(t, 1, mon.Alerts())
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, analysis.SeverityDanger, notifier.sent[0].Severity)
}

func TestAlertCountedWithoutDispatch(t *testing.T) {
	source := &fakeSource{duration: 5}
	notifier := &fakeNotifier{}
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeverityWarning)}, source, notifier, nil, Config{
		Interval:  5 * time.Second,
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	assert.Equal(t, 1, mon.Alerts())
	assert.Empty(t, notifier.sent, "disabled alerts are counted but not dispatched")
}

func TestNoAlertBelowWarning(t *testing.T) {
	source := &fakeSource{duration: 5}
	notifier := &fakeNotifier{}
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeverityMonitor)}, source, notifier, nil, Config{
		Interval:     5 * time.Second,
		OutputDir:    t.TempDir(),
		AlertEnabled: true,
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	assert.Equal(t, 0, mon.Alerts())
	assert.Empty(t, notifier.sent)
}

func TestSessionPersistedOnFinish(t *testing.T) {
	source := &fakeSource{duration: 5}
	store := &fakeStore{}
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeverityDanger)}, source, nil, store, Config{
		Interval:     5 * time.Second,
		OutputDir:    t.TempDir(),
		AlertEnabled: true,
	}, zap.NewNop())

	_, err := mon.RunVideo(context.Background(), "barn.mp4")
	require.NoError(t, err)

	require.NotNil(t, store.tl)
	assert.Equal(t, "video", store.mode)
	assert.Equal(t, 1, store.alerts)
	assert.Equal(t, "barn.mp4", store.tl.Source())
}

func TestRunFrame(t *testing.T) {
	framePath := filepath.Join(t.TempDir(), "still.jpg")
	require.NoError(t, os.WriteFile(framePath, []byte("frame"), 0644))

	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}, nil, nil, nil, Config{
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	v, err := mon.RunFrame(context.Background(), framePath)
	require.NoError(t, err)
	assert.Equal(t, "still.jpg", v.Frame)
}

func TestRunFrameMissingFile(t *testing.T) {
	mon := New(&fakeAnalyzer{fn: verdictWith(analysis.SeveritySafe)}, nil, nil, nil, Config{
		OutputDir: t.TempDir(),
	}, zap.NewNop())

	_, err := mon.RunFrame(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
}

func TestPacingDelay(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		latency  time.Duration
		want     time.Duration
	}{
		{"fast inference", 5 * time.Second, 2 * time.Second, 3 * time.Second},
		{"exact interval", 5 * time.Second, 5 * time.Second, 0},
		{"slow inference floors at zero", 5 * time.Second, 7 * time.Second, 0},
		{"zero latency", 5 * time.Second, 0, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pacingDelay(tt.interval, tt.latency))
		})
	}
}

func TestSampleEvenly(t *testing.T) {
	frames := []string{"a", "b", "c", "d", "e", "f"}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"sample half", 3, []string{"a", "c", "e"}},
		{"zero keeps all", 0, frames},
		{"larger than set keeps all", 10, frames},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sampleEvenly(frames, tt.n))
		})
	}
}
