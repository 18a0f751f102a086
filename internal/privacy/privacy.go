// Package privacy hides selected application windows from screen capture
// using the OS display-affinity exclusion flag. Everything here is
// best-effort: an OS call that fails counts as zero windows affected and is
// logged, never propagated. A monitoring agent must not crash its host over
// a window it could not hide.
package privacy

import (
	"log"
	"sort"
	"strings"
	"sync"
)

// windowAPI is the OS seam: toggle capture exclusion for every visible
// top-level window owned by processes matching name. Returns the number of
// windows affected.
type windowAPI interface {
	setProcessAffinity(name string, hide bool) (int, error)
}

// Controller tracks which process names are currently excluded from capture
// and reconciles a desired exclusion set against that state.
type Controller struct {
	api    windowAPI
	mu     sync.Mutex
	hidden map[string]bool
}

// NewController returns a controller backed by the platform window API.
func NewController() *Controller {
	return newController(newPlatformWindowAPI())
}

func newController(api windowAPI) *Controller {
	return &Controller{
		api:    api,
		hidden: make(map[string]bool),
	}
}

// normalizeName lower-cases a process name and appends .exe when missing,
// matching how the exclusion list is stored server-side.
func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n != "" && !strings.HasSuffix(n, ".exe") {
		n += ".exe"
	}
	return n
}

// HideProcessWindows toggles capture visibility for all top-level windows of
// processes matching name. Returns the affected-window count, 0 on error.
func (c *Controller) HideProcessWindows(name string, hide bool) int {
	normalized := normalizeName(name)
	if normalized == "" {
		return 0
	}

	count, err := c.api.setProcessAffinity(normalized, hide)
	if err != nil {
		log.Printf("Privacy: failed to update windows for %s: %v", normalized, err)
		return 0
	}

	c.mu.Lock()
	if hide {
		if count > 0 {
			c.hidden[normalized] = true
		}
	} else {
		delete(c.hidden, normalized)
	}
	c.mu.Unlock()

	return count
}

// HideMultipleProcesses applies the same toggle to several process names and
// returns the total affected-window count.
func (c *Controller) HideMultipleProcesses(names []string, hide bool) int {
	total := 0
	for _, name := range names {
		total += c.HideProcessWindows(name, hide)
	}
	return total
}

// GetHiddenProcesses returns the process names currently tracked as hidden.
func (c *Controller) GetHiddenProcesses() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.hidden))
	for name := range c.hidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RestoreAll unconditionally restores every previously hidden window.
func (c *Controller) RestoreAll() {
	for _, name := range c.GetHiddenProcesses() {
		c.HideProcessWindows(name, false)
	}
}

// UpdateExclusions reconciles the tracked hidden set against a new desired
// list. Names no longer desired are unhidden. Every name in the new list is
// then re-hidden unconditionally, not just the delta: excluded programs may
// have opened new windows since the last pass, and a redundant affinity call
// on an already-hidden window is harmless.
func (c *Controller) UpdateExclusions(newList []string) {
	desired := make(map[string]bool, len(newList))
	for _, name := range newList {
		if n := normalizeName(name); n != "" {
			desired[n] = true
		}
	}

	for _, name := range c.GetHiddenProcesses() {
		if !desired[name] {
			log.Printf("Privacy: removing exclusion for %s", name)
			c.HideProcessWindows(name, false)
		}
	}

	for name := range desired {
		c.HideProcessWindows(name, true)
	}
}

// RefreshExclusions re-applies the exclusion list and returns the total
// affected-window count. Called from a periodic timer to catch windows of
// excluded programs that spawned after the last pass.
func (c *Controller) RefreshExclusions(list []string) int {
	total := 0
	for _, name := range list {
		total += c.HideProcessWindows(name, true)
	}
	return total
}
