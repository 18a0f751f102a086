package monitor

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/a1tools/agent/internal/input"
)

// recordingSimulator captures every input call as a readable trace line.
type recordingSimulator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingSimulator) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingSimulator) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingSimulator) MoveMouse(x, y int) { r.add("move %d,%d", x, y) }
func (r *recordingSimulator) MouseClick(x, y int, button input.MouseButton, double bool) {
	r.add("click %d,%d btn=%d double=%v", x, y, button, double)
}
func (r *recordingSimulator) MouseDown(button input.MouseButton) { r.add("down btn=%d", button) }
func (r *recordingSimulator) MouseUp(button input.MouseButton)   { r.add("up btn=%d", button) }
func (r *recordingSimulator) MouseScroll(delta int)              { r.add("scroll %d", delta) }
func (r *recordingSimulator) KeyPress(vk int, ext bool)          { r.add("press %d ext=%v", vk, ext) }
func (r *recordingSimulator) KeyDown(vk int, ext bool)           { r.add("keydown %d", vk) }
func (r *recordingSimulator) KeyUp(vk int, ext bool)             { r.add("keyup %d", vk) }
func (r *recordingSimulator) TypeText(text string)               { r.add("type %q", text) }
func (r *recordingSimulator) LockWorkstation()                   { r.add("lock") }
func (r *recordingSimulator) ShowMessageBox(title, message string) {
	r.add("msgbox %q %q", title, message)
}

func command(kind CommandType, params string) RemoteCommand {
	return RemoteCommand{ID: 1, Type: kind, Data: json.RawMessage(params)}
}

func TestDispatchMouseCommands(t *testing.T) {
	sim := &recordingSimulator{}
	d := NewDispatcher(sim, nil)

	cases := []struct {
		cmd  RemoteCommand
		want string
	}{
		{command(CmdMouseMove, `{"x":100,"y":200}`), "move 100,200"},
		{command(CmdMouseClick, `{"x":5,"y":6,"button":"right","double_click":true}`), "click 5,6 btn=2 double=true"},
		{command(CmdMouseDown, `{"button":"middle"}`), "down btn=1"},
		{command(CmdMouseUp, `{"button":"left"}`), "up btn=0"},
		{command(CmdMouseScroll, `{"delta":-120}`), "scroll -120"},
	}
	for i, tc := range cases {
		result, err := d.Dispatch(tc.cmd)
		if err != nil {
			t.Fatalf("case %d: Dispatch failed: %v", i, err)
		}
		if result != "ok" {
			t.Errorf("case %d: result = %q, want ok", i, result)
		}
		trace := sim.trace()
		if trace[len(trace)-1] != tc.want {
			t.Errorf("case %d: recorded %q, want %q", i, trace[len(trace)-1], tc.want)
		}
	}
}

func TestDispatchKeyCombo(t *testing.T) {
	sim := &recordingSimulator{}
	d := NewDispatcher(sim, nil)

	// Ctrl+Alt+Delete must press in order and release in reverse
	if _, err := d.Dispatch(command(CmdKeyCombo, `{"vk_codes":[17,18,46]}`)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	want := []string{"keydown 17", "keydown 18", "keydown 46", "keyup 46", "keyup 18", "keyup 17"}
	trace := sim.trace()
	if len(trace) != len(want) {
		t.Fatalf("recorded %d calls, want %d: %v", len(trace), len(want), trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, trace[i], want[i])
		}
	}
}

func TestDispatchKeyboardAndText(t *testing.T) {
	sim := &recordingSimulator{}
	d := NewDispatcher(sim, nil)

	d.Dispatch(command(CmdKeyPress, `{"vk_code":13,"extended":false}`))
	d.Dispatch(command(CmdTypeText, `{"text":"hello"}`))

	trace := sim.trace()
	if trace[0] != "press 13 ext=false" {
		t.Errorf("key_press recorded %q", trace[0])
	}
	if trace[1] != `type "hello"` {
		t.Errorf("type_text recorded %q", trace[1])
	}
}

func TestDispatchScreenshotNow(t *testing.T) {
	fired := false
	d := NewDispatcher(&recordingSimulator{}, func() { fired = true })

	result, err := d.Dispatch(RemoteCommand{ID: 7, Type: CmdScreenshotNow})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q", result)
	}
	if !fired {
		t.Error("screenshot callback never fired")
	}
}

func TestDispatchLockAndMessageBox(t *testing.T) {
	sim := &recordingSimulator{}
	d := NewDispatcher(sim, nil)

	d.Dispatch(RemoteCommand{Type: CmdLockScreen})
	d.Dispatch(command(CmdMessageBox, `{"title":"IT","message":"Reboot at 5pm"}`))

	trace := sim.trace()
	if trace[0] != "lock" {
		t.Errorf("lock_screen recorded %q", trace[0])
	}
	if trace[1] != `msgbox "IT" "Reboot at 5pm"` {
		t.Errorf("message_box recorded %q", trace[1])
	}
}

func TestDispatchUnknownType(t *testing.T) {
	d := NewDispatcher(&recordingSimulator{}, nil)

	if _, err := d.Dispatch(RemoteCommand{ID: 3, Type: "reboot_now"}); err == nil {
		t.Error("expected error for unknown command type")
	}
}

func TestDispatchMalformedParams(t *testing.T) {
	sim := &recordingSimulator{}
	d := NewDispatcher(sim, nil)

	if _, err := d.Dispatch(RemoteCommand{Type: CmdMouseMove}); err == nil {
		t.Error("expected error for missing parameters")
	}
	if _, err := d.Dispatch(command(CmdMouseMove, `{"x":"oops"}`)); err == nil {
		t.Error("expected error for malformed parameters")
	}
	if len(sim.trace()) != 0 {
		t.Errorf("malformed commands reached the simulator: %v", sim.trace())
	}
}

func TestRemoteCommandFlexibleID(t *testing.T) {
	var numeric RemoteCommand
	if err := json.Unmarshal([]byte(`{"id":42,"command_type":"mouse_move","command_data":{"x":1,"y":2}}`), &numeric); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if numeric.ID != 42 || numeric.Type != CmdMouseMove {
		t.Errorf("numeric id parsed as %d/%s", numeric.ID, numeric.Type)
	}

	var stringy RemoteCommand
	if err := json.Unmarshal([]byte(`{"id":"17","command_type":"lock_screen"}`), &stringy); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if stringy.ID != 17 {
		t.Errorf("string id parsed as %d, want 17", stringy.ID)
	}

	var junk RemoteCommand
	if err := json.Unmarshal([]byte(`{"id":"abc","command_type":"lock_screen"}`), &junk); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if junk.ID != 0 {
		t.Errorf("unparseable id parsed as %d, want 0", junk.ID)
	}
}

func TestParseSocketCommandShapes(t *testing.T) {
	cmd, ok := parseSocketCommand([]byte(`{"command_type":"mouse_move","id":5,"command_data":{"x":1,"y":2}}`))
	if !ok || cmd.Type != CmdMouseMove || cmd.ID != 5 {
		t.Errorf("long-form shape parsed as %+v ok=%v", cmd, ok)
	}

	cmd, ok = parseSocketCommand([]byte(`{"type":"lock_screen","id":"9"}`))
	if !ok || cmd.Type != CmdLockScreen || cmd.ID != 9 {
		t.Errorf("short-form shape parsed as %+v ok=%v", cmd, ok)
	}

	if _, ok = parseSocketCommand([]byte(`{"id":1}`)); ok {
		t.Error("message with no type should not parse")
	}
	if _, ok = parseSocketCommand([]byte(`not json`)); ok {
		t.Error("garbage should not parse")
	}
}
