package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// ZerologLevel maps the configured level name onto zerolog.
func ZerologLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the structured logger used by the storage and influx
// managers. Output goes to w in console format; a non-empty graylogAddr also
// ships JSON records over GELF UDP. The returned closer releases the GELF
// socket and is never nil.
func NewZerolog(w io.Writer, level, graylogAddr string) (zerolog.Logger, io.Closer, error) {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	writers := []io.Writer{zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}}
	var closer io.Closer = nopCloser{}
	if graylogAddr != "" {
		gw, err := gelf.NewWriter(graylogAddr)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("graylog writer %s: %w", graylogAddr, err)
		}
		writers = append(writers, gw)
		closer = gw
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ZerologLevel(level)).
		With().Timestamp().Str("service", "mocaprig").Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
