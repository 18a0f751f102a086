package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/a1tools/agent/internal/capture"
	"github.com/a1tools/agent/internal/codec"
	"github.com/a1tools/agent/internal/config"
	"github.com/a1tools/agent/internal/input"
	"github.com/a1tools/agent/internal/journal"
	"github.com/a1tools/agent/internal/monitor"
	"github.com/a1tools/agent/internal/privacy"
	svc "github.com/a1tools/agent/internal/service"
	"github.com/a1tools/agent/internal/stream"
)

var Version = "2.3.1"

var (
	serverURL      = flag.String("server", "", "Monitoring server URL (e.g., https://support.example.com)")
	computerID     = flag.String("computer-id", "", "Override the configured computer ID")
	userID         = flag.String("user", "", "Override the configured username")
	shotInterval   = flag.Int("screenshot-interval", 0, "Screenshot interval in minutes")
	streamPort     = flag.Int("stream-port", 0, "Live viewer TCP port")
	streamPassword = flag.String("stream-password", "", "Live viewer password")
	installFlag    = flag.Bool("install", false, "Install as system service")
	uninstall      = flag.Bool("uninstall", false, "Uninstall the system service")
	runService     = flag.Bool("service", false, "Run as a service (internal)")
	showVersion    = flag.Bool("version", false, "Show version information")
	showStatus     = flag.Bool("status", false, "Show service status")
)

// App owns the wired-up monitoring stack for one process.
type App struct {
	cfg     *config.Config
	encoder *codec.Encoder
	journal *journal.Journal
	monitor *monitor.Monitor
}

func main() {
	flag.Parse()

	setupLogging()

	if *showVersion {
		fmt.Printf("A1 Monitor v%s\n", Version)
		fmt.Printf("OS: %s\n", runtime.GOOS)
		fmt.Printf("Arch: %s\n", runtime.GOARCH)
		os.Exit(0)
	}

	if *showStatus {
		status, err := svc.Status()
		if err != nil {
			fmt.Printf("Service status: unknown (%v)\n", err)
		} else {
			fmt.Printf("Service status: %s\n", status)
		}
		os.Exit(0)
	}

	if *installFlag {
		if *serverURL == "" {
			fmt.Println("Error: --server is required for installation")
			fmt.Println("Usage: a1-monitor --install --server=https://support.example.com")
			os.Exit(1)
		}
		if !svc.IsElevated() {
			fmt.Println("Error: Administrator/root privileges required for installation")
			os.Exit(1)
		}

		cfg, err := config.Load()
		if err != nil {
			cfg = config.DefaultConfig()
		}
		cfg.ServerURL = *serverURL
		if err := cfg.Save(); err != nil {
			fmt.Printf("Error saving configuration: %v\n", err)
			os.Exit(1)
		}

		if err := svc.Install(*serverURL); err != nil {
			fmt.Printf("Error installing service: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("A1 Monitor installed and started successfully")
		os.Exit(0)
	}

	if *uninstall {
		if !svc.IsElevated() {
			fmt.Println("Error: Administrator/root privileges required for uninstallation")
			os.Exit(1)
		}
		if err := svc.Uninstall(); err != nil {
			fmt.Printf("Error uninstalling service: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("A1 Monitor uninstalled successfully")
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load config, using defaults: %v", err)
		cfg = config.DefaultConfig()
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *computerID != "" {
		cfg.ComputerID = *computerID
	}
	if *userID != "" {
		cfg.Username = *userID
	}
	if *shotInterval > 0 {
		cfg.ScreenshotInterval = *shotInterval
	}
	if *streamPort > 0 {
		cfg.StreamPort = *streamPort
	}
	if *streamPassword != "" {
		cfg.StreamPassword = *streamPassword
	}

	if cfg.ServerURL == "" {
		fmt.Println("Error: no server configured")
		fmt.Println("Run: a1-monitor --install --server=https://support.example.com")
		os.Exit(1)
	}

	if err := cfg.Save(); err != nil {
		log.Printf("Warning: Could not save config: %v", err)
	}

	app := NewApp(cfg)

	if *runService {
		s, err := svc.New(app.Start, app.Stop)
		if err != nil {
			log.Fatalf("Failed to create service: %v", err)
		}
		if err := s.Run(); err != nil {
			log.Fatalf("Service error: %v", err)
		}
	} else {
		if err := app.Run(); err != nil {
			log.Fatalf("Monitor error: %v", err)
		}
	}
}

func setupLogging() {
	logDir := config.GetLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logFile, err := os.OpenFile(filepath.Join(logDir, "monitor.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
		}
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// NewApp wires the monitoring stack together. Every collaborator is built
// here and injected; nothing reaches for globals.
func NewApp(cfg *config.Config) *App {
	encoder := codec.NewEncoder()

	j, err := journal.Open(filepath.Join(filepath.Dir(config.GetConfigPath()), "journal.db"))
	if err != nil {
		log.Printf("Warning: audit journal unavailable: %v", err)
		j = nil
	} else {
		if removed, err := j.Prune(); err == nil && removed > 0 {
			log.Printf("Pruned %d old journal entries", removed)
		}
	}

	apiBase := strings.TrimRight(cfg.ServerURL, "/") + "/api/monitoring.php"

	newViewer := func(source stream.FrameSource, onIdleStop func()) monitor.StreamServer {
		return stream.NewServer(source, stream.Options{
			Addr:       fmt.Sprintf(":%d", cfg.StreamPort),
			Password:   cfg.StreamPassword,
			DefaultFPS: cfg.StreamFPS,
			OnIdleStop: onIdleStop,
		})
	}

	m := monitor.New(monitor.Deps{
		API:               monitor.NewAPIClient(apiBase),
		ServerURL:         cfg.ServerURL,
		Capturer:          capture.NewPlatformCapturer(),
		Encoder:           encoder,
		Input:             input.NewPlatformSimulator(),
		Privacy:           privacy.NewController(),
		Journal:           j,
		NewStreamServer:   newViewer,
		Version:           Version,
		Exclusions:        cfg.ExcludedProcesses,
		HeartbeatInterval: time.Duration(cfg.HeartbeatInterval) * time.Second,
	})
	m.Initialize(cfg.ComputerID, cfg.Username, cfg.ScreenshotInterval)

	return &App{cfg: cfg, encoder: encoder, journal: j, monitor: m}
}

// Run starts the monitor in interactive mode and blocks until a signal.
func (a *App) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := a.Start(); err != nil {
		return err
	}

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	return a.Stop()
}

// Start brings the monitoring session up.
func (a *App) Start() error {
	log.Printf("Starting A1 Monitor v%s", Version)
	log.Printf("Computer ID: %s", a.cfg.ComputerID)
	log.Printf("Server: %s", a.cfg.ServerURL)

	return a.monitor.Start()
}

// Stop shuts the session down and releases resources.
func (a *App) Stop() error {
	log.Println("Stopping monitor...")

	a.monitor.Stop()
	a.encoder.Close()
	if a.journal != nil {
		a.journal.Close()
	}

	log.Println("Monitor stopped")
	return nil
}
