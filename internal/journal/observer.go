package journal

import (
	"context"
	"log/slog"
	"time"

	"capturesync/internal/logging"
	"capturesync/internal/pipeline"
)

const appendTimeout = 5 * time.Second

// Observer stores terminal records in s. Write failures are logged and never
// affect processing.
func Observer(s *Store, logger *slog.Logger) pipeline.Observer {
	logger = logging.NewComponentLogger(logger, "journal")
	return pipeline.ObserverFunc(func(r pipeline.Record) {
		if !Stored(r.Kind) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		defer cancel()
		if _, err := s.Append(ctx, r); err != nil {
			logging.WarnWithContext(logger, "journal write failed", "journal_write_failed",
				logging.String(logging.FieldSource, r.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check disk space and permissions of "+s.Path()),
				logging.String(logging.FieldImpact, "history for this file is incomplete"),
			)
		}
	})
}

// Stored reports whether records of kind are kept in the journal.
func Stored(kind pipeline.Kind) bool {
	switch kind {
	case pipeline.KindProcessed, pipeline.KindSkipped, pipeline.KindFailed, pipeline.KindIndexed:
		return true
	default:
		return false
	}
}
