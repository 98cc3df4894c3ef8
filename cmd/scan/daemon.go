package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/alfredjeanlab/scanline/internal/config"
	"github.com/alfredjeanlab/scanline/internal/debounce"
	"github.com/alfredjeanlab/scanline/internal/decode"
	"github.com/alfredjeanlab/scanline/internal/device"
	"github.com/alfredjeanlab/scanline/internal/events"
	"github.com/alfredjeanlab/scanline/internal/export"
	"github.com/alfredjeanlab/scanline/internal/feedback"
	"github.com/alfredjeanlab/scanline/internal/gate"
	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/pipeline"
	"github.com/alfredjeanlab/scanline/internal/server"
	"github.com/alfredjeanlab/scanline/internal/session"
	"github.com/alfredjeanlab/scanline/internal/stats"
	"github.com/alfredjeanlab/scanline/internal/ui"
)

// daemon is the assembled capture-to-detection pipeline plus its servers.
type daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	publisher events.Publisher
	hub       *server.EventHub
	tracker   *stats.Tracker
	display   *feedback.TerminalDisplay
	waiters   []interface{ Wait() }
	source    *device.DirSource
	ctrl      *session.Controller
	srv       *server.Server
	health    *health.Server
	scheduler *export.Scheduler
}

// newDaemon wires every component. Results are shown on out.
func newDaemon(ctx context.Context, cfg *config.Config, profile config.Profile, logger *slog.Logger, out io.Writer, color bool) (*daemon, error) {
	framesDir := profile.FramesDir
	if cfg.FramesDir != "" {
		framesDir = cfg.FramesDir
	}

	formats, err := profile.ParsedFormats()
	if err != nil {
		return nil, err
	}
	engine, err := decode.NewEngine(formats, profile.TryHarder)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		hub:     server.NewEventHub(),
		tracker: stats.New(),
		display: feedback.NewTerminalDisplay(out, ui.NewPalette(color)),
	}

	pubs := []events.Publisher{d.hub}
	if cfg.NATSURL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, nc)
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("events disabled (SCANLINE_NATS_URL not set)")
	}
	d.publisher = events.NewFanout(pubs...)

	sinks := feedback.Sinks{
		Display:  d.display,
		Tone:     feedback.BellTone{W: out},
		Haptic:   feedback.NoHaptic{},
		Recorder: feedback.MultiRecorder{feedback.LogRecorder{Logger: logger}, feedback.EventRecorder{Publisher: d.publisher}},
	}
	if profile.BeepCommand != "" {
		tone := feedback.NewCommandTone(profile.BeepCommand, profile.Timeout(), logger)
		sinks.Tone = tone
		d.waiters = append(d.waiters, tone)
	}
	if profile.HasVibrator && profile.HapticCommand != "" {
		haptic := feedback.NewCommandHaptic(profile.HapticCommand, profile.Timeout(), logger)
		sinks.Haptic = haptic
		d.waiters = append(d.waiters, haptic)
	}
	dispatcher := feedback.NewDispatcher(sinks, logger)

	dedup := debounce.New()
	handler := pipeline.New(pipeline.Config{
		Dedup:     dedup,
		Reporter:  dispatcher,
		Counter:   d.tracker,
		Publisher: d.publisher,
		Logger:    logger,
	})
	g := gate.New(engine, handler, gate.WithLogger(logger), gate.WithRecorder(d.tracker))

	d.source = device.NewDirSource(device.DirSourceConfig{
		Dir:       framesDir,
		Interval:  profile.Interval(),
		Rotation:  profile.Rotation,
		MaxWidth:  profile.PreviewWidth,
		MaxHeight: profile.PreviewHeight,
		Logger:    logger,
	})

	d.health = server.NewHealthServer()
	healthUpdate := server.HealthUpdater(d.health)
	d.ctrl = session.New(session.Config{
		Permission: device.DirPermission{Dir: framesDir},
		Provider:   device.NewVirtualProvider(profile, logger),
		Source:     d.source,
		Gate:       g,
		Feedback:   dispatcher,
		Dedup:      dedup,
		Publisher:  d.publisher,
		Logger:     logger,
		OnStateChange: func(s model.SessionState) {
			healthUpdate(s)
			if s == model.SessionActive {
				_ = d.display.SetStatus("Scanning " + framesDir)
			}
		},
	})
	d.srv = server.New(d.ctrl, d.tracker, d.hub, logger)

	if cfg.ExportInterval > 0 {
		dests := exportDestinations(ctx, cfg, logger)
		if len(dests) > 0 {
			d.scheduler = export.NewScheduler(d.tracker, d.ctrl.State, dests, cfg.ExportInterval, logger)
		}
	}

	logger.Info("daemon configured",
		"profile", profile.Name,
		"frames_dir", framesDir,
		"formats", engine.Formats(),
		"flash", profile.HasFlash,
		"vibrator", profile.HasVibrator,
	)
	return d, nil
}

func exportDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []export.Destination {
	var dests []export.Destination
	if cfg.ExportS3Bucket != "" {
		s3Dest, err := export.NewS3Destination(ctx, cfg.ExportS3Bucket, cfg.ExportS3Key, cfg.ExportS3Region, cfg.ExportS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
		}
	}
	if cfg.ExportFile != "" {
		dests = append(dests, export.FileDestination{Path: cfg.ExportFile})
		logger.Info("export file destination enabled", "path", cfg.ExportFile)
	}
	return dests
}

// reportStats logs a snapshot and publishes it on the bus.
func (d *daemon) reportStats(snap stats.Snapshot) {
	d.logger.Info("stats: snapshot",
		"delivered", snap.FramesDelivered,
		"decoded", snap.FramesDecoded,
		"dropped", snap.Dropped(),
		"failures", snap.DecodeFailures,
		"accepted", snap.ScansAccepted,
		"duplicates", snap.ScansDuplicate,
		"avg_latency_ms", snap.AvgLatencyMS,
	)
	if err := d.publisher.Publish(context.Background(), events.TopicStatsReported, events.StatsReported{Stats: snap}); err != nil {
		d.logger.Warn("stats: publish failed", "err", err)
	}
}

// run serves on the given listeners until ctx is cancelled, then shuts down.
func (d *daemon) run(ctx context.Context, httpLis, grpcLis net.Listener) error {
	grpcServer := server.NewGRPCServer(d.cfg.AuthToken, d.health)
	go func() {
		d.logger.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			d.logger.Error("gRPC server error", "err", err)
		}
	}()

	httpServer := &http.Server{
		Handler:           d.srv.NewHTTPHandler(d.cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		d.logger.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("HTTP server error", "err", err)
		}
	}()

	if d.cfg.StatsInterval > 0 {
		d.tracker.StartReporter(&stats.ReporterConfig{
			Interval: d.cfg.StatsInterval,
			OnReport: d.reportStats,
		})
	}
	if d.scheduler != nil {
		d.scheduler.Start()
		d.logger.Info("export scheduler started", "interval", d.cfg.ExportInterval)
	}

	if d.cfg.Autostart {
		if err := d.ctrl.Start(ctx); err != nil {
			d.logger.Error("autostart failed", "err", err)
		}
	}

	<-ctx.Done()
	return d.shutdown(grpcServer, httpServer)
}

func (d *daemon) shutdown(grpcServer *grpc.Server, httpServer *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := d.ctrl.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("closing session: %w", err))
	}
	for _, w := range d.waiters {
		w.Wait()
	}

	if d.scheduler != nil {
		d.scheduler.Stop()
		d.logger.Info("export scheduler stopped")
	}
	d.tracker.Stop()

	// End SSE streams so the HTTP shutdown does not wait on them.
	_ = d.hub.Close()
	d.health.Shutdown()

	grpcServer.GracefulStop()
	d.logger.Info("gRPC server stopped")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}
	d.logger.Info("HTTP server stopped")

	if err := d.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publisher: %w", err))
	}

	d.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
