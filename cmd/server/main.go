package main

import (
	// Standard library
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// External dependencies
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	// Internal packages
	"github.com/fluxnotes/flux/cmd/server/internal/api"
	"github.com/fluxnotes/flux/cmd/server/internal/capture"
	"github.com/fluxnotes/flux/cmd/server/internal/config"
	"github.com/fluxnotes/flux/cmd/server/internal/middleware"
	"github.com/fluxnotes/flux/cmd/server/internal/pipeline"
	"github.com/fluxnotes/flux/cmd/server/internal/pipeline/diarize"
	"github.com/fluxnotes/flux/cmd/server/internal/pipeline/transcribe"
	"github.com/fluxnotes/flux/cmd/server/internal/store"
	"github.com/fluxnotes/flux/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	env := "dev"
	if cfg.IsProduction() || cfg.Log.Format == "json" {
		env = "prod"
	}
	logInstance, err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Environment: env,
		WithSource:  !cfg.IsProduction(),
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	appLogger := logInstance.With("component", "flux-server")
	appLogger.Info("configuration loaded", "env", cfg.Server.Env, "port", cfg.Server.Port, "meetings_dir", cfg.Data.MeetingsDir)

	st, err := store.New(cfg.Data.MeetingsDir, logInstance.With("component", "store"))
	if err != nil {
		appLogger.Error("store init failed", "error", err)
		os.Exit(1)
	}

	// Transcription backend: the Flux sidecar when configured, otherwise the
	// degraded noop path (whole-session fallback only). The pipeline gate
	// follows the backend, but session starts stay allowed in degraded mode:
	// recording without structured transcription is still a valid session.
	var (
		transcriber  pipeline.SegmentTranscriber
		pipelineGate pipeline.Readiness
		startGate    pipeline.Readiness
	)
	if cfg.Pipeline.TranscriberURL != "" {
		client := transcribe.NewHTTPTranscriber(cfg.Pipeline.TranscriberURL)
		transcriber, pipelineGate, startGate = client, client, client
		appLogger.Info("transcription backend", "name", client.Name(), "url", cfg.Pipeline.TranscriberURL)
	} else {
		noop := transcribe.NewNoopTranscriber(logInstance.With("component", "transcribe"))
		transcriber, pipelineGate, startGate = noop, noop, alwaysReady{}
		appLogger.Warn("no transcriber configured, running degraded", "name", noop.Name())
	}

	engine := diarize.NewEngine(
		sidecarModelLoader(cfg.Pipeline.TranscriberURL),
		diarize.Params{
			Threshold:  cfg.Pipeline.DiarizeThreshold,
			MinSegment: cfg.Pipeline.DiarizeMinSegment,
			MergeGap:   cfg.Pipeline.DiarizeMergeGap,
		},
		logInstance.With("component", "diarize"),
	)

	pipe := pipeline.New(engine, transcriber, pipelineGate, logInstance.With("component", "pipeline"))

	captureLog := logInstance.With("component", "capture")
	var source capture.AudioSource
	if cfg.Pipeline.MockCapture {
		// Scripted source for development: every session yields a canned
		// transcript so the full completion path can be exercised end to end.
		appLogger.Warn("using mock audio source with scripted transcript")
		source = capture.NewMockSource("This is a scripted development capture.", nil, captureLog)
	} else {
		// Platform recorders register via build-tagged files; the default
		// build falls back to an empty mock source so the server runs
		// anywhere, but real sessions will finish with no speech.
		appLogger.Warn("no platform audio recorder built in, sessions will capture nothing")
		source = capture.NewMockSource("", nil, captureLog)
	}

	mgr := capture.NewManager(source, pipe, st, startGate, logInstance.With("component", "capture"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "transcriber_ready": pipelineGate.Ready(c.Request.Context())})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.BearerAuth(cfg.Security.APISecret))
	{
		v1.POST("/capture/start", api.HandleStartCapture(mgr))
		v1.POST("/capture/stop", api.HandleStopCapture(mgr))
		v1.GET("/capture/status", api.HandleCaptureStatus(mgr))
		v1.GET("/capture/events", api.HandleCaptureEvents(mgr))

		v1.GET("/meetings", api.HandleListMeetings(st))
		v1.GET("/meetings/:id", api.HandleGetMeeting(st))
		v1.PUT("/meetings/:id/title", api.HandleRenameMeeting(st))
		v1.PUT("/meetings/:id/folder", api.HandleMoveMeeting(st))
		v1.DELETE("/meetings/:id", api.HandleDeleteMeeting(st))
		v1.GET("/meetings/:id/export", api.HandleExportMeeting(st))

		v1.GET("/folders", api.HandleListFolders(st))
		v1.POST("/folders", api.HandleCreateFolder(st))
		v1.PUT("/folders/:id", api.HandleRenameFolder(st))
		v1.DELETE("/folders/:id", api.HandleDeleteFolder(st))
	}

	srv := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: router,
	}

	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down")

	// Let an in-flight session reach a terminal state if it can, then drain
	// pending store writes.
	mgr.StopMeeting()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("server shutdown", "error", err)
	}
	st.Flush()
	appLogger.Info("shutdown complete")
}

// alwaysReady admits session starts unconditionally. Used as the manager's
// start gate in degraded mode, where sessions complete via the whole-session
// fallback instead of the structured path.
type alwaysReady struct{}

func (alwaysReady) Ready(ctx context.Context) bool { return true }

// sidecarModelLoader returns a diarization model backed by the sidecar
// deployment. An unconfigured sidecar leaves the loader failing, which the
// pipeline absorbs via fallback.
func sidecarModelLoader(baseURL string) diarize.ModelLoader {
	return func(ctx context.Context) (diarize.Model, error) {
		if strings.TrimSpace(baseURL) == "" {
			return nil, fmt.Errorf("no diarization backend configured")
		}
		return diarize.NewSidecarModel(baseURL), nil
	}
}
