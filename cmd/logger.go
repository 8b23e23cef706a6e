package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/heroku/color"
)

const DefaultLogLevel = "info"

var (
	DefaultLogger = &Logger{
		&log.Logger{
			Handler: &handler{writer: Stderr},
			Level:   log.InfoLevel,
		},
	}

	Stdout = color.NewConsole(os.Stdout)
	Stderr = color.NewConsole(os.Stderr)

	warnStyle  = color.New(color.FgYellow, color.Bold).SprintfFunc()
	errorStyle = color.New(color.FgRed, color.Bold).SprintfFunc()
)

// Logger wraps an apex logger so that components depending on the local
// log.Logger interface never import apex directly.
type Logger struct {
	*log.Logger
}

func (l *Logger) SetLevel(requested string) error {
	if requested == "" {
		requested = DefaultLogLevel
	}
	level, err := log.ParseLevel(requested)
	if err != nil {
		return FailErrCode(fmt.Errorf("parse log level: %w", err), CodeForInvalidArgs)
	}
	l.Logger.Level = level
	return nil
}

func DisableColor(noColor bool) {
	Stdout.DisableColors(noColor)
	Stderr.DisableColors(noColor)
}

type handler struct {
	mu     sync.Mutex
	writer io.Writer
}

func (h *handler) HandleLog(entry *log.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch entry.Level {
	case log.WarnLevel:
		_, err = fmt.Fprintln(h.writer, warnStyle("Warning: %s", entry.Message))
	case log.ErrorLevel, log.FatalLevel:
		_, err = fmt.Fprintln(h.writer, errorStyle("ERROR: %s", entry.Message))
	default:
		_, err = fmt.Fprintln(h.writer, entry.Message)
	}
	return err
}
