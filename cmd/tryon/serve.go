package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ayusman/tryon/internal/app"
	"github.com/ayusman/tryon/internal/capture"
	"github.com/ayusman/tryon/internal/config"
	"github.com/ayusman/tryon/internal/logger"
	"github.com/ayusman/tryon/internal/overlay"
	"github.com/ayusman/tryon/internal/server"
	"github.com/ayusman/tryon/internal/store"
	"github.com/ayusman/tryon/internal/tray"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(v *viper.Viper, configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection pipeline and HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v, *configPath)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("db", "", "Path to the SQLite database")
	flags.String("web", "", "Directory of static web files")
	flags.Int("device", 0, "Camera device index")
	flags.String("backend", app.BackendMediaPipe, "Face detector backend (mediapipe, mock)")
	flags.Int("period-ms", int(app.DefaultPeriod/time.Millisecond), "Detection cycle period in milliseconds")
	flags.Float64("motion-threshold", 0, "Percent of changed pixels needed to run detection, 0 disables the gate")
	flags.Bool("tray", false, "Show a system tray icon")

	bindFlag(v, "server.addr", flags.Lookup("addr"))
	bindFlag(v, "db.path", flags.Lookup("db"))
	bindFlag(v, "server.static_dir", flags.Lookup("web"))
	bindFlag(v, "camera.device", flags.Lookup("device"))
	bindFlag(v, "detector.backend", flags.Lookup("backend"))
	bindFlag(v, "pipeline.period_ms", flags.Lookup("period-ms"))
	bindFlag(v, "pipeline.motion_threshold", flags.Lookup("motion-threshold"))
	bindFlag(v, "tray.enabled", flags.Lookup("tray"))

	return cmd
}

func runServe(v *viper.Viper, configPath string) error {
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return err
	}

	closer := logger.Init(cfg.Log)
	defer closer.Close()

	log.WithField("version", version).Info("TryOn - Eyewear Virtual Try-On")

	if err := config.EnsureDirectories(cfg); err != nil {
		return err
	}

	st, err := store.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	cam := capture.DefaultOptions()
	cam.DeviceID = cfg.Camera.Device
	cam.FPS = cfg.Camera.FPS

	application := app.New(app.Config{
		Store:           st,
		Camera:          cam,
		DetectorBackend: cfg.Detector.Backend,
		Params:          cfg.Params(),
		Period:          cfg.Period(),
		MotionThreshold: cfg.Pipeline.MotionThreshold,
	})

	if err := application.LoadActiveProfile(); err != nil {
		log.WithError(err).Warn("Failed to load active profile, using configured params")
	}

	if err := application.Start(); err != nil {
		log.WithError(err).Warn("Camera unavailable, serving landmark ingestion only")
	}
	defer application.Stop()

	webDir := cfg.Server.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.WithField("dir", webDir).Info("Serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:   webDir,
		Store:       st,
		App:         application,
		IngestRate:  cfg.Ingest.Rate,
		IngestBurst: cfg.Ingest.Burst,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	quit := make(chan struct{})
	var quitOnce sync.Once
	requestQuit := func() { quitOnce.Do(func() { close(quit) }) }

	var t *tray.Tray
	if cfg.Tray.Enabled {
		t = newTray(application, st, localURL(cfg.Server.Addr), requestQuit)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan error, 1)
	go func() {
		var serveErr error
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Shutting down...")
		case <-quit:
			log.Info("Quit requested, shutting down...")
		case serveErr = <-errCh:
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Error shutting down HTTP server")
		}

		if t != nil {
			t.Quit()
		}
		done <- serveErr
	}()

	// systray needs the main goroutine.
	if t != nil {
		t.Run()
	}

	if err := <-done; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newTray wires the tray menu to the pipeline. The profile line follows the
// active profile as commits arrive.
func newTray(application *app.App, st *store.Store, url string, onQuit func()) *tray.Tray {
	t := tray.New()
	t.OnToggle(application.SetEnabled)
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.WithError(err).Warn("Failed to open browser")
		}
	})
	t.OnQuit(onQuit)

	var mu sync.Mutex
	lastProfile := ""
	updateProfile := func() {
		id := application.ActiveProfileID()

		mu.Lock()
		defer mu.Unlock()
		if id == lastProfile {
			return
		}
		lastProfile = id

		name := ""
		if id != "" {
			if p, err := st.Profiles().GetByID(id); err == nil {
				name = p.Name
			}
		}
		t.SetProfile(name)
	}
	updateProfile()

	application.RegisterCommitCallback(func(c overlay.Committed) {
		t.SetLastScale(c.Transform.Scale)
		updateProfile()
	})

	return t
}

// localURL returns the browser URL for a listen address such as ":8080".
func localURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	if strings.HasPrefix(host, "0.0.0.0:") {
		host = "localhost" + strings.TrimPrefix(host, "0.0.0.0")
	}
	return "http://" + host + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.tryon/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
