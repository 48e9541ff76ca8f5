package app

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Logger = zerolog.New(os.Stdout).Level(zerolog.InfoLevel)

// MemoryLog keeps the tail of the log for the API log endpoint.
var MemoryLog = newMemLog(256)

// modules log levels from the `log:` config map
var modules map[string]string

// GetLogger returns the logger for a module, honoring a per-module level
// from the config (`log: {server: debug}`).
func GetLogger(module string) zerolog.Logger {
	if s, ok := modules[module]; ok {
		if lvl, err := zerolog.ParseLevel(s); err == nil {
			return Logger.Level(lvl)
		}
		Logger.Warn().Str("module", module).Msg("[app] bad log level")
	}
	return Logger
}

// initLogger supports:
// - format: empty (autodetect color), color, text, json
// - level:  trace, debug, info (default), warn, error...
func initLogger() {
	var cfg struct {
		Mod map[string]string `yaml:"log"`
	}

	LoadConfig(&cfg)
	modules = cfg.Mod

	var writer io.Writer = os.Stdout

	if format := modules["format"]; format != "json" {
		console := &zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05.000"}
		switch format {
		case "text":
			console.NoColor = true
		case "color":
		default:
			console.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
		}
		writer = console
	}

	lvl := zerolog.InfoLevel
	if s, ok := modules["level"]; ok {
		if l, err := zerolog.ParseLevel(s); err == nil {
			lvl = l
		}
	}

	writer = zerolog.MultiLevelWriter(writer, MemoryLog)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	Logger = zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}

// memLog - bounded ring of raw log lines.
type memLog struct {
	mu    sync.Mutex
	lines [][]byte
	next  int
	full  bool
}

func newMemLog(n int) *memLog {
	return &memLog{lines: make([][]byte, n)}
}

func (m *memLog) Write(p []byte) (int, error) {
	m.mu.Lock()
	m.lines[m.next] = append([]byte(nil), p...)
	if m.next++; m.next == len(m.lines) {
		m.next = 0
		m.full = true
	}
	m.mu.Unlock()
	return len(p), nil
}

// WriteTo dumps the buffered lines, oldest first.
func (m *memLog) WriteTo(w io.Writer) (n int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := 0
	if m.full {
		i = m.next
	}
	for k := 0; k < len(m.lines); k++ {
		line := m.lines[(i+k)%len(m.lines)]
		if line == nil {
			break
		}
		var nn int
		if nn, err = w.Write(line); err != nil {
			return
		}
		n += int64(nn)
	}
	return
}
