// Package sysinfo gathers the host facts reported on every heartbeat.
package sysinfo

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// Facts describes the host as reported to the monitoring server.
type Facts struct {
	ComputerName string
	Username     string
	LocalIP      string
	OSVersion    string
}

// Collect gathers host facts. Individual lookups that fail degrade to
// sensible fallbacks; heartbeats must go out even on a half-broken host.
func Collect() Facts {
	facts := Facts{
		ComputerName: hostname(),
		Username:     username(),
		LocalIP:      localIP(),
		OSVersion:    osVersion(),
	}
	return facts
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

func username() string {
	u, err := user.Current()
	if err != nil {
		return os.Getenv("USER")
	}
	return u.Username
}

// localIP finds the outbound interface address without sending any packets.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "0.0.0.0"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "0.0.0.0"
}

func osVersion() string {
	info, err := host.Info()
	if err != nil {
		return runtime.GOOS
	}
	return fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch)
}
