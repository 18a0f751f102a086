package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pollInterval    = 500 * time.Millisecond
	wsRetryInterval = 60 * time.Second
)

// commandChannel delivers remote commands to a handler. WebSocket is the
// preferred transport; if the connection cannot be established or dies, the
// channel falls back to HTTP polling so the agent never loses the ability to
// receive commands. It keeps retrying the WebSocket in the background and
// switches back when it comes up again.
type commandChannel struct {
	api        *APIClient
	wsURL      string
	computerID string
	handler    func(RemoteCommand)

	cancel context.CancelFunc
	done   chan struct{}
}

// websocketURL derives the command socket URL from the backend base URL.
func websocketURL(serverURL, computerID string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host + "/api/ws/commands.php?computer=" + url.QueryEscape(computerID)
}

func newCommandChannel(api *APIClient, serverURL, computerID string, handler func(RemoteCommand)) *commandChannel {
	return &commandChannel{
		api:        api,
		wsURL:      websocketURL(serverURL, computerID),
		computerID: computerID,
		handler:    handler,
	}
}

// Start launches the delivery loop. Stop tears it down.
func (c *commandChannel) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

func (c *commandChannel) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
}

func (c *commandChannel) run(ctx context.Context) {
	defer close(c.done)

	for {
		if ctx.Err() != nil {
			return
		}

		if c.wsURL != "" {
			if err := c.runWebSocket(ctx); err != nil {
				log.Printf("Command channel: WebSocket unavailable (%v), falling back to polling", err)
			}
		}
		if ctx.Err() != nil {
			return
		}

		// Poll until the next WebSocket retry window
		c.runPolling(ctx, wsRetryInterval)
	}
}

// runWebSocket connects and reads commands until the socket dies or the
// channel is stopped. Returns the terminal error.
func (c *commandChannel) runWebSocket(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return err
	}
	defer conn.Close()

	log.Println("Command channel: WebSocket connected")

	// Close the socket when the channel stops so ReadMessage unblocks
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		cmd, ok := parseSocketCommand(data)
		if !ok {
			log.Printf("Command channel: unparseable message %.100s", data)
			continue
		}
		c.handler(cmd)
	}
}

// parseSocketCommand normalizes the socket message shape, which carries the
// command type under either "type" or "command_type" and the payload under
// either "data" or "command_data".
func parseSocketCommand(data []byte) (RemoteCommand, bool) {
	var raw struct {
		Type        string          `json:"type"`
		CommandType string          `json:"command_type"`
		ID          json.RawMessage `json:"id"`
		Data        json.RawMessage `json:"data"`
		CommandData json.RawMessage `json:"command_data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RemoteCommand{}, false
	}

	kind := raw.CommandType
	if kind == "" {
		kind = raw.Type
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return RemoteCommand{}, false
	}

	payload := raw.CommandData
	if len(payload) == 0 {
		payload = raw.Data
	}

	return RemoteCommand{
		ID:   parseFlexibleID(raw.ID),
		Type: CommandType(kind),
		Data: payload,
	}, true
}

// runPolling fetches pending commands every 500ms for at most the given
// duration, then returns so the caller can retry the WebSocket.
func (c *commandChannel) runPolling(ctx context.Context, duration time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			commands, err := c.api.GetCommands(c.computerID)
			if err != nil {
				// Skip this poll; the next tick retries
				continue
			}
			for _, cmd := range commands {
				c.handler(cmd)
			}
		}
	}
}
