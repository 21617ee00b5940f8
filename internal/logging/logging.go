package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/labstack/gommon/log"
)

var (
	mu      sync.Mutex
	level   = log.INFO
	output  io.Writer
	loggers []*log.Logger
)

// New returns a prefixed logger that follows the level set through SetLevel.
func New(prefix string) *log.Logger {
	l := log.New(prefix)
	l.SetHeader("${time_rfc3339} ${level} ${prefix}")

	mu.Lock()
	defer mu.Unlock()
	l.SetLevel(level)
	if output != nil {
		l.SetOutput(output)
	}
	loggers = append(loggers, l)
	return l
}

// SetLevel changes the level of every logger handed out by New, including later ones.
func SetLevel(lvl log.Lvl) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
	log.SetLevel(lvl)
}

// SetOutput redirects every logger handed out by New, including later ones.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
	log.SetOutput(w)
}

// Level returns the current shared level.
func Level() log.Lvl {
	mu.Lock()
	defer mu.Unlock()
	return level
}

func ParseLevel(s string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off":
		return log.OFF, nil
	}
	return log.INFO, fmt.Errorf("unknown log level %q", s)
}
