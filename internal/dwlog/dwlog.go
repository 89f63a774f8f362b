// Package dwlog is the engine's one diagnostic chokepoint. Every other
// package calls dwlog.Printf instead of fmt.Println/log.Printf, funneling
// every trace through a single severity+destination pair the way embedded
// audio/radio firmware typically gates its one debug UART.
package dwlog

import (
	"os"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Severity classifies a trace line by destination/urgency rather than by
// raw log level, terms that make sense for a data-processing engine.
type Severity int

const (
	Info Severity = iota
	Warn
	Overrun
	Underrun
	Protocol
	Debug
)

var sevToLevel = map[Severity]charmlog.Level{
	Info:     charmlog.InfoLevel,
	Warn:     charmlog.WarnLevel,
	Overrun:  charmlog.WarnLevel,
	Underrun: charmlog.WarnLevel,
	Protocol: charmlog.InfoLevel,
	Debug:    charmlog.DebugLevel,
}

var (
	mu        sync.Mutex
	logger    = charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: true})
	tsPattern *strftime.Strftime
)

func init() {
	tsPattern, _ = strftime.New("%Y-%m-%d %H:%M:%S")
	logger.SetLevel(charmlog.InfoLevel)
}

// SetLevel raises or lowers the minimum severity that reaches the sink.
func SetLevel(sev Severity) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(sevToLevel[sev])
}

// Printf is the engine-wide trace point. chanID of -1 means "not
// channel-specific" (e.g. a scheduler-wide message).
func Printf(sev Severity, chanID int, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	fields := []any{}
	if chanID >= 0 {
		fields = append(fields, "chan", chanID)
	}
	if tsPattern != nil {
		fields = append(fields, "ts", tsPattern.FormatString(time.Now()))
	}

	switch sev {
	case Overrun:
		logger.With(fields...).Warnf("overrun: "+format, args...)
	case Underrun:
		logger.With(fields...).Warnf("underrun: "+format, args...)
	case Protocol:
		logger.With(fields...).Infof("protocol: "+format, args...)
	case Debug:
		logger.With(fields...).Debugf(format, args...)
	case Warn:
		logger.With(fields...).Warnf(format, args...)
	default:
		logger.With(fields...).Infof(format, args...)
	}
}
