// Package log sets up the per-process go-logging backend shared by every
// component of the accessory runtime.
package log

import (
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/op/go-logging"
)

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{message}`,
)
var stderrFormat = logging.MustStringFormatter(
	`%{color}hap ▶ %{message}%{color:reset}`,
)

// SetupLogging wires a named go-logging.Logger to syslog when available,
// falling back to stderr. component is both the syslog tag and the
// name of the returned logger (one per package).
func SetupLogging(component string, defaultLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend
	if trySyslog {
		var err error
		backend, err = logging.NewSyslogBackendPriority(component, syslog.LOG_NOTICE)
		if err == nil {
			logging.SetFormatter(syslogFormat)
			if sb, ok := backend.(*logging.SyslogBackend); ok {
				stdlog.SetOutput(sb.Writer)
			}
		} else {
			backend = nil
		}
	}
	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, component+" ", 0)
		logging.SetFormatter(stderrFormat)
	}
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(defaultLevel, "")
	logging.SetBackend(leveled)
	return logging.MustGetLogger(component)
}

// New returns a logger for component without touching the global backend
// configuration; used by packages that are imported before SetupLogging
// runs (e.g. in tests).
func New(component string) *logging.Logger {
	return logging.MustGetLogger(component)
}
