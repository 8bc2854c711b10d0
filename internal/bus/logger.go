package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/thegridelectric/gridworks-debug-cli/internal/logging"
)

// watermillLogger bridges Watermill's LoggerAdapter to zerolog.
type watermillLogger struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewWatermillLogger returns a LoggerAdapter writing to the global gwd
// logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{logger: logging.With().Str("component", "bus").Logger()}
}

func (l *watermillLogger) log(event *zerolog.Event, msg string, err error, fields watermill.LogFields) {
	if err != nil {
		event = event.Err(err)
	}
	for k, v := range l.fields {
		event = event.Interface(k, v)
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.log(l.logger.Error(), msg, err, fields)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log(l.logger.Debug(), msg, nil, fields) // watermill Info is chatty; demote
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log(l.logger.Debug(), msg, nil, fields)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log(l.logger.Trace(), msg, nil, fields)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{logger: l.logger, fields: merged}
}
