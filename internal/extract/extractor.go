package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Extractor wraps ffmpeg/ffprobe for single-frame extraction from video
// files and RTSP cameras. Every call is bounded by the configured timeout.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
	log         *zap.Logger
}

func New(timeout time.Duration, log *zap.Logger) (*Extractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	// ffprobe is optional; duration probing falls back to ffmpeg output.
	ffprobePath, _ := exec.LookPath("ffprobe")

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Extractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
		log:         log,
	}, nil
}

// Duration returns the video length in seconds.
func (e *Extractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("video file not accessible: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, e.ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			durationStr := strings.TrimSpace(stdout.String())
			if duration, err := strconv.ParseFloat(durationStr, 64); err == nil && duration > 0 {
				return duration, nil
			}
		}
	}

	// Fallback: parse the "Duration: HH:MM:SS.ss" line from ffmpeg stderr.
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-i", videoPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	return parseDurationOutput(stderr.String())
}

func parseDurationOutput(output string) (float64, error) {
	const durationPrefix = "Duration: "
	startIndex := strings.Index(output, durationPrefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(durationPrefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	durationStr := output[startIndex : startIndex+endIndex]
	parts := strings.Split(durationStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", durationStr)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// FrameAt extracts a single frame at the given timestamp to outPath.
func (e *Extractor) FrameAt(ctx context.Context, source string, timestamp float64, outPath string) error {
	args := []string{
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", source,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	}
	if err := e.run(ctx, args); err != nil {
		return fmt.Errorf("failed to extract frame at %.1fs: %w", timestamp, err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg produced no frame at %.1fs", timestamp)
	}
	return nil
}

// Capture grabs one frame from a live RTSP stream. Transport is forced to
// TCP; UDP drops frames on barn wifi.
func (e *Extractor) Capture(ctx context.Context, rtspURL, outPath string) error {
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", rtspURL,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	}
	if err := e.run(ctx, args); err != nil {
		return fmt.Errorf("failed to capture frame from stream: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("ffmpeg produced no frame from stream")
	}
	return nil
}

func (e *Extractor) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.log.Debug("ffmpeg failed", zap.Strings("args", args), zap.String("stderr", lastLine(stderr.String())))
		return fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
