// Package service wraps system-service management (install, uninstall,
// lifecycle) for the monitoring agent.
package service

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"

	"github.com/kardianos/service"
)

const (
	ServiceName        = "A1Monitor"
	ServiceDisplayName = "A1 Tools Remote Monitoring"
	ServiceDescription = "A1 Tools remote monitoring and support agent"
)

// Program adapts start/stop callbacks to the service.Interface.
type Program struct {
	start func() error
	stop  func() error
}

func (p *Program) Start(s service.Service) error {
	log.Println("Service starting...")
	go p.run()
	return nil
}

func (p *Program) run() {
	if p.start != nil {
		if err := p.start(); err != nil {
			log.Printf("Start error: %v", err)
		}
	}
}

func (p *Program) Stop(s service.Service) error {
	log.Println("Service stopping...")
	if p.stop != nil {
		return p.stop()
	}
	return nil
}

// Config returns the service configuration.
func Config() *service.Config {
	return &service.Config{
		Name:        ServiceName,
		DisplayName: ServiceDisplayName,
		Description: ServiceDescription,
		Option:      getServiceOptions(),
	}
}

func getServiceOptions() service.KeyValue {
	options := make(service.KeyValue)

	switch runtime.GOOS {
	case "windows":
		options["StartType"] = "automatic"
		options["OnFailure"] = "restart"
		options["OnFailureDelayDuration"] = "5s"
		options["OnFailureResetPeriod"] = 10
	case "linux":
		options["SystemdScript"] = systemdScript
		options["Restart"] = "always"
		options["RestartSec"] = "5"
	case "darwin":
		options["KeepAlive"] = true
		options["RunAtLoad"] = true
	}

	return options
}

// New creates a service around the given lifecycle callbacks.
func New(startFn, stopFn func() error) (service.Service, error) {
	prg := &Program{
		start: startFn,
		stop:  stopFn,
	}
	return service.New(prg, Config())
}

// Install registers the agent as a system service and starts it. The server
// URL is baked into the service arguments so the service process does not
// depend on a pre-existing config file.
func Install(serverURL string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cfg := Config()
	cfg.Executable = exe
	cfg.Arguments = []string{
		"--server=" + serverURL,
		"--service",
	}

	svc, err := service.New(&Program{}, cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	// Reinstall cleanly if an older registration exists
	status, err := svc.Status()
	if err == nil && status != service.StatusUnknown {
		log.Println("Service already installed, updating...")
		svc.Stop()
		svc.Uninstall()
	}

	if err := svc.Install(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}
	log.Println("Service installed successfully")

	configureServiceWithSC(ServiceName)

	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	log.Println("Service started successfully")
	return nil
}

// Uninstall stops and removes the service registration.
func Uninstall() error {
	svc, err := New(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	status, err := svc.Status()
	if err == nil && status == service.StatusRunning {
		if err := svc.Stop(); err != nil {
			log.Printf("Warning: failed to stop service: %v", err)
		}
	}

	if err := svc.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall service: %w", err)
	}

	log.Println("Service uninstalled successfully")
	return nil
}

// Start starts the installed service.
func Start() error {
	svc, err := New(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return svc.Start()
}

// Stop stops the installed service.
func Stop() error {
	svc, err := New(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return svc.Stop()
}

// Status reports the installed service's state.
func Status() (string, error) {
	svc, err := New(nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create service: %w", err)
	}

	status, err := svc.Status()
	if err != nil {
		return "", err
	}

	switch status {
	case service.StatusRunning:
		return "running", nil
	case service.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}

// IsElevated checks if the process has administrator/root privileges.
func IsElevated() bool {
	switch runtime.GOOS {
	case "windows":
		return isWindowsAdmin()
	default:
		return os.Geteuid() == 0
	}
}

// configureServiceWithSC applies start and recovery settings with native SC
// commands; the service manager API alone does not honor all of them.
func configureServiceWithSC(serviceName string) error {
	if runtime.GOOS != "windows" {
		return nil
	}

	cmd := exec.Command("sc", "config", serviceName, "start=", "auto")
	if err := cmd.Run(); err != nil {
		log.Printf("Warning: sc config start=auto failed: %v", err)
	}

	// Restart after 5s, 10s, 30s on failure
	cmd = exec.Command("sc", "failure", serviceName,
		"reset=", "86400",
		"actions=", "restart/5000/restart/10000/restart/30000")
	if err := cmd.Run(); err != nil {
		log.Printf("Warning: sc failure config failed: %v", err)
	}

	cmd = exec.Command("sc", "failureflag", serviceName, "1")
	if err := cmd.Run(); err != nil {
		log.Printf("Warning: sc failureflag failed: %v", err)
	}

	log.Printf("Service %s configured with automatic start and failure recovery", serviceName)
	return nil
}

// Linux systemd unit file template
const systemdScript = `[Unit]
Description={{.Description}}
After=network.target
Wants=network.target

[Service]
Type=simple
ExecStart={{.Path}} {{.Arguments}}
Restart=always
RestartSec=5
StandardOutput=journal
StandardError=journal
SyslogIdentifier={{.Name}}

[Install]
WantedBy=multi-user.target
`
