// Package monitoring holds the process-wide diagnostic logging hooks.
package monitoring

import (
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	debugMu sync.Mutex
	debugOn bool
)

// SetDebug enables or disables Debugf output.
func SetDebug(on bool) {
	debugMu.Lock()
	debugOn = on
	debugMu.Unlock()
}

// Debugf logs through Logf only when debug output is enabled. The deploy
// tool turns it on with the -debug flag to trace executed commands.
func Debugf(format string, v ...interface{}) {
	debugMu.Lock()
	on := debugOn
	debugMu.Unlock()
	if on {
		Logf(format, v...)
	}
}
