package stream

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// frameParser demultiplexes the post-auth byte stream: a FRAME header line,
// then exactly the announced number of raw bytes, repeated. It buffers
// whatever fragmentation the transport delivers, so header/body boundaries
// can land anywhere inside a read.
type frameParser struct {
	buf        bytes.Buffer
	haveHeader bool // a header was parsed and its body is still owed
	pending    int  // body bytes still expected
	onFrame    func([]byte)
}

// feed consumes a chunk of received bytes, invoking onFrame for every
// completed frame. Returns an error on a malformed header.
func (p *frameParser) feed(data []byte) error {
	p.buf.Write(data)

	for {
		if !p.haveHeader {
			raw := p.buf.Bytes()
			idx := bytes.IndexByte(raw, '\n')
			if idx < 0 {
				return nil
			}
			line := strings.TrimSpace(string(raw[:idx]))
			p.buf.Next(idx + 1)

			fields := strings.Fields(line)
			if len(fields) != 2 || fields[0] != frameHeader {
				return fmt.Errorf("malformed frame header %q", line)
			}
			size, err := strconv.Atoi(fields[1])
			if err != nil || size < 0 {
				return fmt.Errorf("bad frame length in header %q", line)
			}
			p.haveHeader = true
			p.pending = size
			continue
		}

		// A zero-length header still counts as a delivered frame, so the
		// body wait is gated on haveHeader rather than pending alone.
		if p.buf.Len() < p.pending {
			return nil
		}
		frame := make([]byte, p.pending)
		copy(frame, p.buf.Next(p.pending))
		p.haveHeader = false
		p.pending = 0
		if p.onFrame != nil {
			p.onFrame(frame)
		}
	}
}

// Client is a viewer connection to a streaming server.
type Client struct {
	OnFrame      func(data []byte)
	OnDisconnect func(err error)

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Connect dials the server and authenticates. The server is authoritative
// for frame pacing; the client imposes no rate limiting of its own.
func (c *Client) Connect(addr, password string) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("stream connect to %s: %w", addr, err)
	}

	if _, err := fmt.Fprintf(conn, "%s %s\n", cmdAuth, password); err != nil {
		conn.Close()
		return fmt.Errorf("stream auth write: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	line, err := readLine(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("stream auth response: %w", err)
	}
	if !strings.HasPrefix(line, "OK") {
		conn.Close()
		return fmt.Errorf("stream auth rejected: %q", line)
	}
	// AUDIO= is parsed for wire compatibility; this server never offers it
	if strings.Contains(line, "AUDIO=1") {
		log.Println("Stream: server advertises audio; ignoring, audio is unsupported")
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// readLine reads a single newline-terminated line byte by byte, so no
// following frame bytes are swallowed into a buffered reader.
func readLine(conn net.Conn) (string, error) {
	var line []byte
	one := make([]byte, 1)
	for {
		if _, err := conn.Read(one); err != nil {
			return "", err
		}
		if one[0] == '\n' {
			return strings.TrimSpace(string(line)), nil
		}
		line = append(line, one[0])
		if len(line) > 256 {
			return "", fmt.Errorf("response line too long")
		}
	}
}

func (c *Client) readLoop(conn net.Conn) {
	parser := &frameParser{onFrame: func(frame []byte) {
		if c.OnFrame != nil {
			c.OnFrame(frame)
		}
	}}

	chunk := make([]byte, 64*1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			if perr := parser.feed(chunk[:n]); perr != nil {
				c.disconnect(perr)
				return
			}
		}
		if err != nil {
			c.disconnect(err)
			return
		}
	}
}

func (c *Client) disconnect(err error) {
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()

	if !wasClosed && c.OnDisconnect != nil {
		c.OnDisconnect(err)
	}
}

// SetFPS asks the server for a new frame rate. The server clamps the value.
func (c *Client) SetFPS(fps int) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}
	_, err := fmt.Fprintf(conn, "%s %d\n", cmdSetFPS, fps)
	return err
}

// Close tears the connection down without invoking OnDisconnect.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}
