package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIClient talks to the monitoring backend. Every operation has its own
// timeout so a slow or unreachable server can never stall a timer tick past
// one request; the failing tick is skipped and the next one retries.
type APIClient struct {
	baseURL string

	control *http.Client // heartbeat, command poll, acks
	upload  *http.Client // screenshot and frame uploads
}

// NewAPIClient creates a client for the backend at baseURL
// (e.g. "https://host/api/monitoring.php").
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		control: &http.Client{Timeout: 10 * time.Second},
		upload:  &http.Client{Timeout: 30 * time.Second},
	}
}

// HeartbeatRequest is the host report sent every heartbeat interval.
type HeartbeatRequest struct {
	ComputerName string
	Username     string
	LocalIP      string
	OSVersion    string
	AppVersion   string
	ScreenWidth  int
	ScreenHeight int
}

// HeartbeatResponse is the server's acknowledgement, which doubles as the
// control channel for streaming state.
type HeartbeatResponse struct {
	Success           bool     `json:"success"`
	StreamRequested   bool     `json:"stream_requested"`
	StreamFPS         int      `json:"stream_fps"`
	StreamQuality     int      `json:"stream_quality"`
	AudioRequested    bool     `json:"audio_requested"`
	ExcludedProcesses []string `json:"excluded_processes"`
}

func (c *APIClient) actionURL(action string, params url.Values) string {
	u := c.baseURL + "?action=" + action
	if len(params) > 0 {
		u += "&" + params.Encode()
	}
	return u
}

// Heartbeat reports host state and returns the server's streaming wishes.
func (c *APIClient) Heartbeat(req HeartbeatRequest) (*HeartbeatResponse, error) {
	form := url.Values{}
	form.Set("computer_name", req.ComputerName)
	form.Set("username", req.Username)
	form.Set("local_ip", req.LocalIP)
	form.Set("os_version", req.OSVersion)
	form.Set("app_version", req.AppVersion)
	form.Set("screen_width", strconv.Itoa(req.ScreenWidth))
	form.Set("screen_height", strconv.Itoa(req.ScreenHeight))

	resp, err := c.control.PostForm(c.actionURL("heartbeat", nil), form)
	if err != nil {
		return nil, fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("heartbeat returned status %d", resp.StatusCode)
	}

	var hb HeartbeatResponse
	if err := json.NewDecoder(resp.Body).Decode(&hb); err != nil {
		return nil, fmt.Errorf("heartbeat response parse failed: %w", err)
	}
	return &hb, nil
}

func (c *APIClient) postMultipart(action string, fields map[string]string, fileField, fileName string, file []byte) (*http.Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("multipart build failed: %w", err)
	}
	part.Write(file)
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, c.actionURL(action, nil), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.upload.Do(req)
}

// UploadScreenshot sends one periodic screenshot.
func (c *APIClient) UploadScreenshot(computerName, username string, jpegData []byte) error {
	resp, err := c.postMultipart("upload_screenshot",
		map[string]string{"computer_name": computerName, "username": username},
		"screenshot", "screenshot.jpg", jpegData)
	if err != nil {
		return fmt.Errorf("screenshot upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("screenshot upload returned status %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("screenshot upload response parse failed: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("server rejected screenshot")
	}
	return nil
}

// UploadStreamFrame sends one live-stream frame. Accepted on HTTP 200.
func (c *APIClient) UploadStreamFrame(computerName string, frame []byte) error {
	resp, err := c.postMultipart("stream_frame",
		map[string]string{"computer_name": computerName},
		"frame", "frame.jpg", frame)
	if err != nil {
		return fmt.Errorf("frame upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("frame upload returned status %d", resp.StatusCode)
	}
	return nil
}

// GetCommands polls for pending remote commands.
func (c *APIClient) GetCommands(computerID string) ([]RemoteCommand, error) {
	params := url.Values{}
	params.Set("computer", computerID)

	resp, err := c.control.Get(c.actionURL("get_commands", params))
	if err != nil {
		return nil, fmt.Errorf("command poll failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("command poll returned status %d", resp.StatusCode)
	}

	var result struct {
		Success  bool            `json:"success"`
		Commands []RemoteCommand `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("command poll response parse failed: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("server reported command poll failure")
	}
	return result.Commands, nil
}

// AckCommand reports a command's outcome so the server stops redelivering it.
func (c *APIClient) AckCommand(commandID int64, result string) error {
	form := url.Values{}
	form.Set("command_id", strconv.FormatInt(commandID, 10))
	form.Set("result", result)

	resp, err := c.control.PostForm(c.actionURL("ack_command", nil), form)
	if err != nil {
		return fmt.Errorf("command ack failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("command ack returned status %d", resp.StatusCode)
	}
	return nil
}
