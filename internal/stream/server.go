package stream

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FrameSource produces one compressed frame, or nil when the capture failed
// and the tick should be skipped. Called at most once at a time.
type FrameSource func() []byte

// Options configures the streaming server.
type Options struct {
	Addr        string        // listen address, defaults to ":5902"
	Password    string        // shared viewer secret
	DefaultFPS  int           // effective rate before any SET_FPS, defaults to 2
	IdleTimeout time.Duration // zero-viewer auto-stop, defaults to 5 minutes
	OnIdleStop  func()        // invoked exactly once if the server stops itself
}

// session is one viewer connection. Frames are only ever written after the
// authenticated flag is set, and writes are serialized per session so frame
// bytes are never interleaved.
type session struct {
	conn          net.Conn
	authenticated bool
	writeMu       sync.Mutex
}

func (s *session) writeFrame(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := fmt.Fprintf(s.conn, "%s %d\n", frameHeader, len(data)); err != nil {
		return err
	}
	_, err := s.conn.Write(data)
	return err
}

// Server pushes captured frames to authenticated viewers over TCP.
type Server struct {
	opts   Options
	source FrameSource

	mu         sync.Mutex
	ln         net.Listener
	sessions   []*session
	interval   time.Duration
	running    bool
	stopped    bool
	loopStop   chan struct{}
	idleTimer  *time.Timer
	intervalCh chan struct{}

	inFlight atomic.Bool
	skipped  atomic.Int64
}

// NewServer creates a streaming server around the given frame source.
func NewServer(source FrameSource, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = fmt.Sprintf(":%d", DefaultPort)
	}
	if opts.DefaultFPS <= 0 {
		opts.DefaultFPS = 2
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Minute
	}
	return &Server{
		opts:       opts,
		source:     source,
		interval:   intervalForFPS(opts.DefaultFPS),
		intervalCh: make(chan struct{}, 1),
	}
}

// Start begins listening for viewers. The capture loop does not run until
// the first viewer authenticates.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.stopped {
		return fmt.Errorf("stream server cannot be restarted")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("stream listen on %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	s.running = true
	s.armIdleTimerLocked()

	go s.acceptLoop(ln)

	log.Printf("Stream server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Running reports whether the server is accepting viewers.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SessionCount returns the number of connected viewer sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SkippedFrames returns how many capture ticks were dropped because a
// capture was still in flight.
func (s *Server) SkippedFrames() int64 {
	return s.skipped.Load()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed on Stop
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	sess := &session{conn: conn}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions = append(s.sessions, sess)
	// Any connection defers the idle shutdown, authenticated or not; the
	// timer re-arms from scratch when the session drops.
	s.cancelIdleTimerLocked()
	s.mu.Unlock()

	reader := bufio.NewReader(conn)

	// The first line must authenticate; everything else is a protocol
	// violation and terminates the connection.
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		s.removeSession(sess)
		return
	}
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 2 || fields[0] != cmdAuth || fields[1] != s.opts.Password {
		conn.Write([]byte(respFail + "\n"))
		s.removeSession(sess)
		log.Printf("Stream: rejected viewer %s (bad auth)", conn.RemoteAddr())
		return
	}

	conn.SetReadDeadline(time.Time{})
	if _, err := conn.Write([]byte(respOK + "\n")); err != nil {
		s.removeSession(sess)
		return
	}

	s.mu.Lock()
	sess.authenticated = true
	s.startCaptureLoopLocked()
	s.mu.Unlock()

	log.Printf("Stream: viewer %s authenticated", conn.RemoteAddr())

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			s.removeSession(sess)
			return
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case cmdSetFPS:
			n := 0
			if len(fields) > 1 {
				n, _ = strconv.Atoi(fields[1])
			}
			s.SetFPS(n)
		default:
			log.Printf("Stream: unknown command %q from %s, closing", fields[0], conn.RemoteAddr())
			s.removeSession(sess)
			return
		}
	}
}

// SetFPS renegotiates the capture interval. Out-of-range values clamp to
// the supported 1-4 range; zero or negative fall back to the default rate.
func (s *Server) SetFPS(requested int) {
	fps := clampFPS(requested, s.opts.DefaultFPS)
	interval := intervalForFPS(fps)

	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	// Nudge the capture loop to re-arm its timer
	select {
	case s.intervalCh <- struct{}{}:
	default:
	}

	log.Printf("Stream: FPS set to %d (interval %v, requested %d)", fps, interval, requested)
}

// Interval returns the current capture interval.
func (s *Server) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Server) currentInterval() time.Duration {
	return s.Interval()
}

func (s *Server) startCaptureLoopLocked() {
	if s.loopStop != nil {
		return
	}
	stop := make(chan struct{})
	s.loopStop = stop
	go s.captureLoop(stop)
}

func (s *Server) stopCaptureLoopLocked() {
	if s.loopStop != nil {
		close(s.loopStop)
		s.loopStop = nil
	}
}

func (s *Server) captureLoop(stop chan struct{}) {
	timer := time.NewTimer(s.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.intervalCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.currentInterval())
		case <-timer.C:
			// Run the capture off the loop goroutine so ticks keep
			// firing while a slow capture is in flight; the guard in
			// pushFrame drops the overlapping ones.
			go s.pushFrame()
			timer.Reset(s.currentInterval())
		}
	}
}

// pushFrame captures, encodes and broadcasts one frame. At most one capture
// runs at a time: ticks arriving while one is in flight are counted and
// dropped rather than queued, which is the backpressure policy that keeps a
// slow encode from piling up captures.
func (s *Server) pushFrame() {
	if !s.inFlight.CompareAndSwap(false, true) {
		if n := s.skipped.Add(1); n%10 == 0 {
			log.Printf("Stream: capture still in flight, %d ticks skipped so far", n)
		}
		return
	}
	defer s.inFlight.Store(false)

	data := s.source()
	if data == nil {
		return
	}
	s.broadcast(data)
}

// CaptureNow pushes a frame immediately, outside the timer schedule.
func (s *Server) CaptureNow() {
	s.pushFrame()
}

func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	targets := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.authenticated {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range targets {
		if err := sess.writeFrame(data); err != nil {
			// One broken viewer must not take down the rest
			log.Printf("Stream: dropping viewer %s: %v", sess.conn.RemoteAddr(), err)
			s.removeSession(sess)
		}
	}
}

func (s *Server) removeSession(sess *session) {
	sess.conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i, candidate := range s.sessions {
		if candidate == sess {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}

	if s.running && len(s.sessions) == 0 {
		s.stopCaptureLoopLocked()
		s.armIdleTimerLocked()
	}
}

func (s *Server) armIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.opts.IdleTimeout, s.idleStop)
}

func (s *Server) cancelIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Server) idleStop() {
	s.mu.Lock()
	if !s.running || len(s.sessions) > 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if s.Stop() {
		log.Println("Stream: no viewers for the idle timeout, stopping server")
		if s.opts.OnIdleStop != nil {
			s.opts.OnIdleStop()
		}
	}
}

// Stop shuts the server down: listener closed, timers cancelled, all viewer
// sessions closed. Safe to call more than once; returns true on the call
// that actually performed the shutdown.
func (s *Server) Stop() bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.stopped = true
	s.running = false

	// Cancel timers before touching sessions so no capture tick races
	// against teardown.
	s.stopCaptureLoopLocked()
	s.cancelIdleTimerLocked()

	if s.ln != nil {
		s.ln.Close()
	}
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.conn.Close()
	}

	log.Println("Stream server stopped")
	return true
}
