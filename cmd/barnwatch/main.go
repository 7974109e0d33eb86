package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oakhollow/barnwatch/internal/analysis"
	"github.com/oakhollow/barnwatch/internal/api"
	"github.com/oakhollow/barnwatch/internal/config"
	"github.com/oakhollow/barnwatch/internal/database"
	"github.com/oakhollow/barnwatch/internal/extract"
	"github.com/oakhollow/barnwatch/internal/inference"
	"github.com/oakhollow/barnwatch/internal/monitor"
	"github.com/oakhollow/barnwatch/internal/notify"
	"github.com/oakhollow/barnwatch/internal/vision"
	"github.com/oakhollow/barnwatch/pkg/logger"
)

func main() {
	var (
		framePath     = flag.String("frame", "", "Analyze a single frame image")
		dirPath       = flag.String("dir", "", "Analyze all .jpg frames in a directory")
		sample        = flag.Int("sample", 0, "Sample N frames evenly from the directory")
		videoPath     = flag.String("video", "", "Video file to monitor")
		cameraURL     = flag.String("camera", "", "RTSP camera URL to monitor")
		interval      = flag.Float64("interval", 5, "Seconds between analyzed frames")
		alert         = flag.Bool("alert", false, "Send Telegram alerts on WARNING/DANGER")
		outputDir     = flag.String("output", "monitoring_output", "Output directory for frames and timeline")
		maxFrames     = flag.Int("max-frames", 0, "Max frames in camera mode (0 = unlimited)")
		noServerCheck = flag.Bool("no-server-check", false, "Skip the inference server readiness check")
		verbose       = flag.Bool("verbose", false, "Debug logging")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to init logger:", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := inference.NewClient(inference.Config{
		BaseURL:     cfg.InferenceBaseURL(),
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.InferTimeout,
	})

	if !*noServerCheck {
		zlog.Info("waiting for inference server", zap.String("url", cfg.InferenceBaseURL()))
		if err := client.WaitReady(ctx, cfg.ReadyTimeout); err != nil {
			zlog.Fatal("inference server not ready", zap.Error(err))
		}
		fmt.Println("Inference server: OK")
	}

	codec := vision.NewCodec(cfg.MaxImageDim, cfg.JPEGQuality)
	analyzer := analysis.NewAnalyzer(codec, client, zlog)

	var notifier notify.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier = notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.AlertTimeout)
	} else if *alert {
		zlog.Warn("alerts requested but TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID are not set")
	}

	var store monitor.SessionStore
	if cfg.DBType != "" {
		db, err := database.NewDB(database.Config{
			Type:       cfg.DBType,
			Host:       cfg.DBHost,
			Port:       cfg.DBPort,
			User:       cfg.DBUser,
			Password:   cfg.DBPassword,
			Name:       cfg.DBName,
			SQLitePath: cfg.DBPath,
		})
		if err != nil {
			zlog.Fatal("failed to open session store", zap.Error(err))
		}
		defer db.Close()
		store = database.NewSessionRepo(db)
	}

	// ffmpeg is only required for the modes that extract frames.
	var source monitor.FrameSource
	if *videoPath != "" || *cameraURL != "" {
		extractor, err := extract.New(cfg.ExtractTimeout, zlog)
		if err != nil {
			zlog.Fatal("frame extraction unavailable", zap.Error(err))
		}
		source = extractor
	}

	mon := monitor.New(analyzer, source, notifier, store, monitor.Config{
		Interval:     time.Duration(*interval * float64(time.Second)),
		MaxFrames:    *maxFrames,
		OutputDir:    *outputDir,
		AlertEnabled: *alert,
		AlertTimeout: cfg.AlertTimeout,
	}, zlog)

	if cfg.StatusPort > 0 {
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.StatusPort),
			Handler: api.NewRouter(api.NewHandlers(mon, zlog)),
		}
		go func() {
			zlog.Info("status server listening", zap.Int("port", cfg.StatusPort))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zlog.Warn("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	switch {
	case *framePath != "":
		fmt.Printf("\nAnalyzing: %s\n", *framePath)
		v, err := mon.RunFrame(ctx, *framePath)
		if err != nil {
			zlog.Fatal("frame analysis failed", zap.Error(err))
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			zlog.Fatal("failed to render verdict", zap.Error(err))
		}
		fmt.Println(string(out))

	case *dirPath != "":
		if _, err := mon.RunDirectory(ctx, *dirPath, *sample); err != nil {
			zlog.Fatal("directory analysis failed", zap.Error(err))
		}

	case *videoPath != "":
		if _, err := mon.RunVideo(ctx, *videoPath); err != nil {
			zlog.Fatal("video monitoring failed", zap.Error(err))
		}

	case *cameraURL != "":
		if _, err := mon.RunCamera(ctx, *cameraURL); err != nil {
			zlog.Fatal("camera monitoring failed", zap.Error(err))
		}

	default:
		flag.Usage()
		os.Exit(1)
	}
}
