// Package monitor is the remote-monitoring orchestrator: it owns the
// heartbeat, screenshot and exclusion-refresh timers, the command channel,
// and the streaming lifecycle, and wires remote commands into the input and
// capture drivers.
//
// Nothing in this package lets an error escape across a timer or socket
// boundary: a background monitoring service must never crash its host over
// one bad frame, one unreachable server call or one malformed command.
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/a1tools/agent/internal/capture"
	"github.com/a1tools/agent/internal/codec"
	"github.com/a1tools/agent/internal/input"
	"github.com/a1tools/agent/internal/journal"
	"github.com/a1tools/agent/internal/privacy"
	"github.com/a1tools/agent/internal/stream"
	"github.com/a1tools/agent/internal/sysinfo"
)

// StreamServer is the live-viewer endpoint the orchestrator starts and stops
// on the server's request.
type StreamServer interface {
	Start() error
	Stop() bool
}

// StreamServerFactory builds a fresh viewer server for one streaming phase.
// A stopped server is not restartable, so each phase gets its own.
type StreamServerFactory func(source stream.FrameSource, onIdleStop func()) StreamServer

// SessionConfig is the orchestrator's session state. Identity fields are set
// once at Initialize; FPS and quality are renegotiated on every heartbeat.
type SessionConfig struct {
	ComputerID         string
	UserID             string
	ScreenshotInterval time.Duration
	StreamFPS          int
	StreamQuality      int
}

// Deps are the orchestrator's collaborators, injected by the composition
// root. No package-level singletons.
type Deps struct {
	API             *APIClient
	ServerURL       string
	Capturer        capture.ScreenCapturer
	Encoder         *codec.Encoder
	Input           input.InputSimulator
	Privacy         *privacy.Controller
	Journal         *journal.Journal // optional
	NewStreamServer StreamServerFactory
	Facts           func() sysinfo.Facts // defaults to sysinfo.Collect
	Version         string
	Exclusions      []string // initial privacy exclusion list

	// Timer intervals, overridable by tests. Zero values take defaults.
	HeartbeatInterval        time.Duration
	ExclusionRefreshInterval time.Duration
}

// Monitor is the top-level control loop for one monitored machine.
type Monitor struct {
	deps Deps

	mu           sync.Mutex
	cfg          SessionConfig
	initialized  bool
	running      bool
	streaming    bool
	exclusions   []string
	cancel       context.CancelFunc
	streamServer StreamServer
	streamStop   chan struct{}

	wg         sync.WaitGroup
	dispatcher *Dispatcher
	channel    *commandChannel
}

// New creates an orchestrator around its collaborators.
func New(deps Deps) *Monitor {
	if deps.Facts == nil {
		deps.Facts = sysinfo.Collect
	}
	if deps.HeartbeatInterval <= 0 {
		deps.HeartbeatInterval = 30 * time.Second
	}
	if deps.ExclusionRefreshInterval <= 0 {
		deps.ExclusionRefreshInterval = 5 * time.Minute
	}
	return &Monitor{
		deps:       deps,
		exclusions: deps.Exclusions,
	}
}

// Initialize captures the session identity. Pure configuration: no timers,
// no network, nothing to undo.
func (m *Monitor) Initialize(computerID, userID string, screenshotIntervalMinutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if screenshotIntervalMinutes <= 0 {
		screenshotIntervalMinutes = 5
	}
	m.cfg = SessionConfig{
		ComputerID:         computerID,
		UserID:             userID,
		ScreenshotInterval: time.Duration(screenshotIntervalMinutes) * time.Minute,
		StreamFPS:          2,
		StreamQuality:      60,
	}
	m.initialized = true
	log.Printf("Monitor initialized for computer %s (user %s, screenshots every %dm)",
		computerID, userID, screenshotIntervalMinutes)
}

// Running reports whether the monitoring session is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Streaming reports whether a streaming phase is active.
func (m *Monitor) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// Start brings the monitoring session up. Idempotent: calling it on a
// running monitor is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return fmt.Errorf("monitor not initialized")
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	exclusions := m.exclusions
	cfg := m.cfg
	m.mu.Unlock()

	m.record(journal.EventSessionStart, "computer="+cfg.ComputerID)

	// Hide excluded windows before the first capture can happen
	if m.deps.Privacy != nil {
		m.deps.Privacy.UpdateExclusions(exclusions)
	}

	m.dispatcher = NewDispatcher(m.deps.Input, func() {
		go m.captureAndUploadScreenshot()
	})

	m.channel = newCommandChannel(m.deps.API, m.deps.ServerURL, cfg.ComputerID, m.handleCommand)
	m.channel.Start()

	m.wg.Add(3)
	go m.heartbeatLoop(ctx)
	go m.screenshotLoop(ctx, cfg.ScreenshotInterval)
	go m.exclusionRefreshLoop(ctx)

	log.Println("Monitor started")
	return nil
}

// Stop tears the session down: timers cancelled, command channel closed,
// streaming stopped, hidden windows restored. Safe to call on a monitor
// that was never started, and safe to call twice.
func (m *Monitor) Stop() {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if m.channel != nil {
		m.channel.Stop()
		m.channel = nil
	}
	m.stopStreaming()
	m.wg.Wait()

	if m.deps.Privacy != nil {
		m.deps.Privacy.RestoreAll()
	}

	if wasRunning {
		m.record(journal.EventSessionStop, "")
		log.Println("Monitor stopped")
	}
}

// record writes to the audit journal when one is configured.
func (m *Monitor) record(eventType, detail string) {
	if m.deps.Journal != nil {
		m.deps.Journal.Record(eventType, detail)
	}
}

// --- timer loops ---
//
// Each tick hands its network call to a fresh goroutine: timers must keep
// firing even while an earlier tick's request is still waiting on the
// server. The per-operation HTTP timeouts bound how many can pile up.

func (m *Monitor) heartbeatLoop(ctx context.Context) {
	defer m.wg.Done()

	go m.sendHeartbeat()

	ticker := time.NewTicker(m.deps.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go m.sendHeartbeat()
		}
	}
}

func (m *Monitor) screenshotLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	go m.captureAndUploadScreenshot()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go m.captureAndUploadScreenshot()
		}
	}
}

func (m *Monitor) exclusionRefreshLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.deps.ExclusionRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			list := m.exclusions
			m.mu.Unlock()
			if m.deps.Privacy != nil && len(list) > 0 {
				affected := m.deps.Privacy.RefreshExclusions(list)
				if affected > 0 {
					m.record(journal.EventExclusion, fmt.Sprintf("refresh affected %d windows", affected))
				}
			}
		}
	}
}

func (m *Monitor) sendHeartbeat() {
	facts := m.deps.Facts()
	width, height := m.deps.Capturer.ScreenSize()

	m.mu.Lock()
	computerID := m.cfg.ComputerID
	userID := m.cfg.UserID
	m.mu.Unlock()

	name := computerID
	if name == "" {
		name = facts.ComputerName
	}
	username := userID
	if username == "" {
		username = facts.Username
	}

	resp, err := m.deps.API.Heartbeat(HeartbeatRequest{
		ComputerName: name,
		Username:     username,
		LocalIP:      facts.LocalIP,
		OSVersion:    facts.OSVersion,
		AppVersion:   m.deps.Version,
		ScreenWidth:  width,
		ScreenHeight: height,
	})
	if err != nil {
		// Skip this tick; the next heartbeat retries on schedule
		log.Printf("Heartbeat failed: %v", err)
		return
	}
	m.handleHeartbeatResponse(resp)
}

// handleHeartbeatResponse applies the server's streaming wishes. Start and
// stop are edge-triggered: a repeated "stream requested" while already
// streaming changes nothing.
func (m *Monitor) handleHeartbeatResponse(resp *HeartbeatResponse) {
	m.mu.Lock()
	if resp.StreamFPS > 0 {
		m.cfg.StreamFPS = resp.StreamFPS
	}
	if resp.StreamQuality > 0 && resp.StreamQuality <= 100 {
		m.cfg.StreamQuality = resp.StreamQuality
	}
	if len(resp.ExcludedProcesses) > 0 {
		m.exclusions = resp.ExcludedProcesses
	}
	exclusions := m.exclusions
	updateExclusions := len(resp.ExcludedProcesses) > 0
	streaming := m.streaming
	running := m.running
	m.mu.Unlock()

	if !running {
		return
	}

	if updateExclusions && m.deps.Privacy != nil {
		m.deps.Privacy.UpdateExclusions(exclusions)
	}

	if resp.AudioRequested {
		// Parsed but never acted on; audio capture is not supported
		log.Println("Heartbeat requested audio streaming; audio is not supported")
	}

	if resp.StreamRequested && !streaming {
		m.startStreaming()
	} else if !resp.StreamRequested && streaming {
		m.stopStreaming()
	}
}

// captureFrame produces one encoded frame, or nil when capture or encode
// failed and the tick should be skipped.
func (m *Monitor) captureFrame() []byte {
	frame := m.deps.Capturer.CaptureScreen()
	if frame == nil {
		return nil
	}
	m.mu.Lock()
	quality := m.cfg.StreamQuality
	m.mu.Unlock()
	return m.deps.Encoder.Encode(frame.Image, quality)
}

func (m *Monitor) captureAndUploadScreenshot() {
	frame := m.deps.Capturer.CaptureScreen()
	if frame == nil {
		log.Println("Screenshot capture failed, skipping this interval")
		return
	}

	m.mu.Lock()
	computerID := m.cfg.ComputerID
	userID := m.cfg.UserID
	quality := m.cfg.StreamQuality
	m.mu.Unlock()

	data := m.deps.Encoder.Encode(frame.Image, quality)
	if data == nil {
		return
	}

	if err := m.deps.API.UploadScreenshot(computerID, userID, data); err != nil {
		log.Printf("Screenshot upload failed: %v", err)
		return
	}
	m.record(journal.EventScreenshot, fmt.Sprintf("%dx%d, %d bytes", frame.Width, frame.Height, len(data)))
}

// --- streaming phase ---

func (m *Monitor) startStreaming() {
	m.mu.Lock()
	if m.streaming || !m.running {
		m.mu.Unlock()
		return
	}
	m.streaming = true
	stop := make(chan struct{})
	m.streamStop = stop
	fps := m.cfg.StreamFPS
	// Registered under the lock so a racing Stop cannot begin waiting
	// between the running check and the loop launch.
	m.wg.Add(1)
	m.mu.Unlock()

	if m.deps.NewStreamServer != nil {
		srv := m.deps.NewStreamServer(m.captureFrame, m.onStreamIdleStop)
		if err := srv.Start(); err != nil {
			log.Printf("Stream server start failed: %v", err)
		} else {
			m.mu.Lock()
			m.streamServer = srv
			m.mu.Unlock()
		}
	}

	go m.framePushLoop(stop)

	m.record(journal.EventStreamStart, fmt.Sprintf("fps=%d", fps))
	log.Printf("Streaming started at %d FPS", fps)
}

func (m *Monitor) stopStreaming() {
	m.mu.Lock()
	if !m.streaming {
		m.mu.Unlock()
		return
	}
	m.streaming = false
	if m.streamStop != nil {
		close(m.streamStop)
		m.streamStop = nil
	}
	srv := m.streamServer
	m.streamServer = nil
	m.mu.Unlock()

	if srv != nil {
		srv.Stop()
	}
	m.record(journal.EventStreamStop, "")
	log.Println("Streaming stopped")
}

// onStreamIdleStop fires when the viewer server shut itself down after its
// idle timeout. The whole streaming phase ends; the next heartbeat that
// requests streaming starts a fresh one.
func (m *Monitor) onStreamIdleStop() {
	m.record(journal.EventStreamIdleStop, "")
	m.stopStreaming()
}

// pushIntervalForFPS mirrors the wire protocol's pacing bounds for the HTTP
// frame-push path: 1-4 FPS, interval within [250ms, 2000ms].
func pushIntervalForFPS(fps int) time.Duration {
	if fps < 1 {
		fps = 1
	}
	if fps > 4 {
		fps = 4
	}
	return time.Duration(1000/fps) * time.Millisecond
}

// framePushLoop uploads frames to the backend while streaming is active.
// The loop is strictly sequential: one capture, one upload, then the next
// tick. A slow upload delays frames rather than stacking them up.
func (m *Monitor) framePushLoop(stop chan struct{}) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		interval := pushIntervalForFPS(m.cfg.StreamFPS)
		computerID := m.cfg.ComputerID
		m.mu.Unlock()

		select {
		case <-stop:
			return
		case <-time.After(interval):
		}

		data := m.captureFrame()
		if data == nil {
			continue
		}
		if err := m.deps.API.UploadStreamFrame(computerID, data); err != nil {
			log.Printf("Stream frame upload failed: %v", err)
		}
	}
}

// handleCommand runs one remote command and always acknowledges it, even
// when dispatch failed: the ack carries the failure so the server does not
// redeliver forever.
func (m *Monitor) handleCommand(cmd RemoteCommand) {
	result, err := m.dispatcher.Dispatch(cmd)
	if err != nil {
		result = "error: " + err.Error()
		log.Printf("Command %d (%s) failed: %v", cmd.ID, cmd.Type, err)
	}

	if err := m.deps.API.AckCommand(cmd.ID, result); err != nil {
		log.Printf("Command %d ack failed: %v", cmd.ID, err)
	}
	m.record(journal.EventCommand, fmt.Sprintf("id=%d type=%s result=%s", cmd.ID, cmd.Type, result))
}
