package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter bridges the pipeline Logger contract onto zerolog. Every
// entry carries the emitting component as a structured field.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	return &ZerologAdapter{
		logger: zerolog.New(writer).Level(level).With().Timestamp().Logger(),
	}
}

// NewConsoleLogger writes human-readable output to stdout; the CLI default.
func NewConsoleLogger(level zerolog.Level) *ZerologAdapter {
	return NewZerolog(zerolog.ConsoleWriter{Out: os.Stdout}, level)
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	z.emit(z.logger.Debug(), component, message, fields)
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	z.emit(z.logger.Info(), component, message, fields)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	z.emit(z.logger.Warn(), component, message, fields)
}

func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	z.emit(z.logger.Error().Err(err), component, "operation failed", fields)
}

func (z *ZerologAdapter) emit(event *zerolog.Event, component, message string, fields map[string]interface{}) {
	event = event.Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}
