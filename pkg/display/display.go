// Package display drives the assistant's busy indicator.
//
// The session controller and the daemon only ever call ShowBusy and Clear;
// how the indicator is rendered (terminal spinner, LED ring, nothing) is up
// to the implementation.
package display

import (
	"os"
	"strings"
)

// Indicator is a two-state visual indicator.
type Indicator interface {
	// ShowBusy starts the busy animation. Calling it while busy is a no-op.
	ShowBusy()

	// Clear turns the indicator off. Calling it while idle is a no-op.
	Clear()
}

// Null is an Indicator that does nothing.
type Null struct{}

// ShowBusy implements Indicator.
func (Null) ShowBusy() {}

// Clear implements Indicator.
func (Null) Clear() {}

var _ Indicator = Null{}

// Tee forwards every call to each of its indicators in order.
type Tee []Indicator

// ShowBusy implements Indicator.
func (t Tee) ShowBusy() {
	for _, ind := range t {
		ind.ShowBusy()
	}
}

// Clear implements Indicator.
func (t Tee) Clear() {
	for _, ind := range t {
		ind.Clear()
	}
}

// piMarkers are substrings of /proc/cpuinfo that identify a Raspberry Pi.
var piMarkers = []string{
	"raspberry pi",
	"bcm2708",
	"bcm2709",
	"bcm2711",
	"bcm2835",
	"bcm2836",
	"bcm2837",
}

// IsRaspberryPi reports whether the process runs on a Raspberry Pi.
func IsRaspberryPi() bool {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return false
	}
	return isRaspberryCPUInfo(string(data))
}

func isRaspberryCPUInfo(cpuinfo string) bool {
	cpuinfo = strings.ToLower(cpuinfo)
	for _, m := range piMarkers {
		if strings.Contains(cpuinfo, m) {
			return true
		}
	}
	return false
}
