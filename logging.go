package deferredshading

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger is a leveled, prefixed, timestamped logger.
type DefaultLogger struct {
	mu    sync.Mutex
	debug bool
	out   *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLoggerTo(os.Stderr, prefix, debug)
}

func NewLoggerTo(w io.Writer, prefix string, debug bool) *DefaultLogger {
	l := &DefaultLogger{
		out: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          prefix,
		}),
	}
	l.SetDebug(debug)
	return l
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
	if enabled {
		l.out.SetLevel(log.DebugLevel)
	} else {
		l.out.SetLevel(log.InfoLevel)
	}
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.out.Debugf(format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.out.Infof(format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.out.Warnf(format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.out.Errorf(format, args...) }

// LoggingModule installs a default logger on the app.
type LoggingModule struct {
	Prefix string
	Debug  bool
}

func (m LoggingModule) Install(app *App) error {
	app.logger = NewDefaultLogger(m.Prefix, m.Debug)
	if app.Renderer != nil {
		app.Renderer.logger = app.logger
	}
	return nil
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// Logger returns the installed logger, otherwise a no-op logger.
// Safe to call at any time; never returns nil.
func (app *App) Logger() Logger {
	if app == nil || app.logger == nil {
		return NewNopLogger()
	}
	return app.logger
}
