package staging

import (
	"context"
	"time"

	"github.com/metastage/metastage/changes"
	"go.uber.org/zap"
)

// NewLoggingService logs every call of underlying at debug level.
func NewLoggingService(logger *zap.Logger, underlying Service) Service {
	return &loggingService{
		logger:     logger,
		underlying: underlying,
	}
}

type loggingService struct {
	logger     *zap.Logger
	underlying Service
}

var _ Service = (*loggingService)(nil)

func (l *loggingService) Prepare(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) (s *Staging, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		fields := []zap.Field{
			zap.String("application", applicationID),
			zap.String("source", sourceEnvID),
			zap.String("target", targetEnvID),
			dur,
		}
		if err != nil {
			l.logger.Debug("failed to prepare staging", append(fields, zap.Error(err))...)
			return
		}
		l.logger.Debug("staging prepare", append(fields, zap.Int("changes", len(s.Changes)))...)
	}(time.Now())
	return l.underlying.Prepare(ctx, applicationID, sourceEnvID, targetEnvID, filter)
}

func (l *loggingService) Perform(ctx context.Context, st *Staging) (results []Result, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to perform staging", zap.Error(err), dur)
			return
		}
		failed := 0
		for _, r := range results {
			if !r.Succeeded {
				failed++
			}
		}
		l.logger.Debug("staging perform",
			zap.String("application", st.ApplicationID),
			zap.String("target", st.TargetEnvironmentID),
			zap.Int("changes", len(results)),
			zap.Int("failed", failed),
			dur)
	}(time.Now())
	return l.underlying.Perform(ctx, st)
}
