package monitor

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/a1tools/agent/internal/input"
)

// CommandType tags a remote-control instruction.
type CommandType string

const (
	CmdMouseMove     CommandType = "mouse_move"
	CmdMouseClick    CommandType = "mouse_click"
	CmdMouseDown     CommandType = "mouse_down"
	CmdMouseUp       CommandType = "mouse_up"
	CmdMouseScroll   CommandType = "mouse_scroll"
	CmdKeyPress      CommandType = "key_press"
	CmdKeyDown       CommandType = "key_down"
	CmdKeyUp         CommandType = "key_up"
	CmdKeyCombo      CommandType = "key_combo"
	CmdTypeText      CommandType = "type_text"
	CmdScreenshotNow CommandType = "screenshot_now"
	CmdLockScreen    CommandType = "lock_screen"
	CmdMessageBox    CommandType = "message_box"
)

// RemoteCommand is one received instruction. It is consumed exactly once by
// Dispatch and terminated by an acknowledgement; this component never retries
// a command on its own.
type RemoteCommand struct {
	ID   int64
	Type CommandType
	Data json.RawMessage
}

// UnmarshalJSON tolerates the backend's loose typing: the id arrives as a
// number or a string depending on which PHP path produced it.
func (c *RemoteCommand) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		CommandType CommandType     `json:"command_type"`
		CommandData json.RawMessage `json:"command_data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Type = raw.CommandType
	c.Data = raw.CommandData
	c.ID = parseFlexibleID(raw.ID)
	return nil
}

func parseFlexibleID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

// Typed parameter payloads, one per command kind.

type MouseMoveParams struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MouseClickParams struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Button      string `json:"button"`
	DoubleClick bool   `json:"double_click"`
}

type MouseButtonParams struct {
	Button string `json:"button"`
}

type MouseScrollParams struct {
	Delta int `json:"delta"`
}

type KeyParams struct {
	VKCode   int  `json:"vk_code"`
	Extended bool `json:"extended"`
}

type KeyComboParams struct {
	VKCodes []int `json:"vk_codes"`
}

type TypeTextParams struct {
	Text string `json:"text"`
}

type MessageBoxParams struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func parseButton(name string) input.MouseButton {
	switch name {
	case "right":
		return input.ButtonRight
	case "middle":
		return input.ButtonMiddle
	default:
		return input.ButtonLeft
	}
}

// Dispatcher routes remote commands to the input driver. screenshot_now is
// handled through a callback because the capture-and-upload pipeline belongs
// to the orchestrator.
type Dispatcher struct {
	input        input.InputSimulator
	onScreenshot func()
}

func NewDispatcher(sim input.InputSimulator, onScreenshot func()) *Dispatcher {
	return &Dispatcher{input: sim, onScreenshot: onScreenshot}
}

// Dispatch executes one command and returns a result string for the ack.
// Unknown command tags and malformed payloads come back as errors; the
// caller acks those as failed rather than dropping them silently.
func (d *Dispatcher) Dispatch(cmd RemoteCommand) (string, error) {
	switch cmd.Type {
	case CmdMouseMove:
		var p MouseMoveParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.MoveMouse(p.X, p.Y)

	case CmdMouseClick:
		var p MouseClickParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.MouseClick(p.X, p.Y, parseButton(p.Button), p.DoubleClick)

	case CmdMouseDown:
		var p MouseButtonParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.MouseDown(parseButton(p.Button))

	case CmdMouseUp:
		var p MouseButtonParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.MouseUp(parseButton(p.Button))

	case CmdMouseScroll:
		var p MouseScrollParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.MouseScroll(p.Delta)

	case CmdKeyPress:
		var p KeyParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.KeyPress(p.VKCode, p.Extended)

	case CmdKeyDown:
		var p KeyParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.KeyDown(p.VKCode, p.Extended)

	case CmdKeyUp:
		var p KeyParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.KeyUp(p.VKCode, p.Extended)

	case CmdKeyCombo:
		var p KeyComboParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		// Hold the chord down in order, release in reverse
		for _, vk := range p.VKCodes {
			d.input.KeyDown(vk, false)
		}
		for i := len(p.VKCodes) - 1; i >= 0; i-- {
			d.input.KeyUp(p.VKCodes[i], false)
		}

	case CmdTypeText:
		var p TypeTextParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.TypeText(p.Text)

	case CmdScreenshotNow:
		if d.onScreenshot != nil {
			d.onScreenshot()
		}

	case CmdLockScreen:
		d.input.LockWorkstation()

	case CmdMessageBox:
		var p MessageBoxParams
		if err := decodeParams(cmd, &p); err != nil {
			return "", err
		}
		d.input.ShowMessageBox(p.Title, p.Message)

	default:
		return "", fmt.Errorf("unknown command type %q", cmd.Type)
	}

	return "ok", nil
}

func decodeParams(cmd RemoteCommand, dest interface{}) error {
	if len(cmd.Data) == 0 {
		return fmt.Errorf("command %d (%s) has no parameters", cmd.ID, cmd.Type)
	}
	if err := json.Unmarshal(cmd.Data, dest); err != nil {
		return fmt.Errorf("command %d (%s) parameter parse failed: %w", cmd.ID, cmd.Type, err)
	}
	return nil
}
