//go:build windows

package privacy

import (
	"fmt"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procSetWindowDisplayAffinity = user32.NewProc("SetWindowDisplayAffinity")
)

const (
	wdaNone               = 0x00000000
	wdaExcludeFromCapture = 0x00000011
)

// winAPI implements windowAPI on top of the toolhelp snapshot and
// SetWindowDisplayAffinity. The affinity call only succeeds for windows this
// process is allowed to touch; refusals surface as a lower affected count.
type winAPI struct{}

func newPlatformWindowAPI() windowAPI {
	return &winAPI{}
}

// processIDsByName returns the PIDs of every running process whose
// executable name matches name (already normalized to lower-case .exe).
func processIDsByName(name string) ([]uint32, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var pids []uint32
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("process enumeration failed: %w", err)
	}
	for {
		exe := strings.ToLower(windows.UTF16ToString(entry.ExeFile[:]))
		if exe == name || strings.Contains(exe, name) {
			pids = append(pids, entry.ProcessID)
		}
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			break
		}
	}
	return pids, nil
}

// windowsForPIDs enumerates visible top-level windows owned by the PIDs.
func windowsForPIDs(pids []uint32) []windows.HWND {
	owned := make(map[uint32]bool, len(pids))
	for _, pid := range pids {
		owned[pid] = true
	}

	var result []windows.HWND
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		var pid uint32
		procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
		if owned[pid] {
			if visible, _, _ := procIsWindowVisible.Call(hwnd); visible != 0 {
				result = append(result, windows.HWND(hwnd))
			}
		}
		return 1 // continue enumeration
	})
	procEnumWindows.Call(cb, 0)
	return result
}

func (w *winAPI) setProcessAffinity(name string, hide bool) (int, error) {
	pids, err := processIDsByName(name)
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, nil
	}

	affinity := uintptr(wdaNone)
	if hide {
		affinity = wdaExcludeFromCapture
	}

	affected := 0
	for _, hwnd := range windowsForPIDs(pids) {
		if ret, _, _ := procSetWindowDisplayAffinity.Call(uintptr(hwnd), affinity); ret != 0 {
			affected++
		}
	}
	return affected, nil
}
