package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sportsnavi-harvester/internal/progress"
)

// LogSink writes each event as a debug log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs every event in batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		if evt.SourceID != "" {
			fields = append(fields, zap.String("source", evt.SourceID))
		}
		if evt.Stage == progress.StageSourceDone || evt.Stage == progress.StageSourceError {
			fields = append(fields,
				zap.Int("articles", evt.Articles),
				zap.Int("inserted", evt.Inserted),
				zap.Duration("dur", evt.Dur),
			)
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close(context.Context) error {
	return nil
}
