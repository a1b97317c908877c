package staging

import (
	"context"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/changes"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/kit/tracing"
	"github.com/metastage/metastage/logger"
	"github.com/metastage/metastage/pkg/future"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

// Executor applies stagings to their target environment.
type Executor struct {
	envs          metastage.EnvironmentService
	topics        metastage.TopicService
	subscriptions metastage.SubscriptionService
	log           *zap.Logger
}

// NewExecutor returns an Executor that applies changes through topics and
// subscriptions.
func NewExecutor(log *zap.Logger, envs metastage.EnvironmentService, topics metastage.TopicService, subscriptions metastage.SubscriptionService) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		envs:          envs,
		topics:        topics,
		subscriptions: subscriptions,
		log:           log,
	}
}

// Perform applies the changes of s one after another. The future resolves
// with one result per change, in order; it only fails for an unknown
// target environment.
func (e *Executor) Perform(ctx context.Context, s *Staging) *future.Future[[]Result] {
	return future.Go(func() ([]Result, error) {
		span, ctx := tracing.StartSpanFromContext(ctx,
			opentracing.Tag{Key: "application", Value: s.ApplicationID},
			opentracing.Tag{Key: "target", Value: s.TargetEnvironmentID})
		defer span.Finish()

		if _, err := e.envs.GetEnvironment(ctx, s.TargetEnvironmentID); err != nil {
			return nil, tracing.LogError(span, &errors.Error{Op: "staging/Perform", Err: err})
		}

		ac := changes.ApplyContext{
			EnvironmentID: s.TargetEnvironmentID,
			Topics:        e.topics,
			Subscriptions: e.subscriptions,
		}
		log := logger.FromContext(ctx, e.log).With(
			zap.String("application", s.ApplicationID),
			zap.String("target", s.TargetEnvironmentID))

		results := make([]Result, 0, len(s.Changes))
		for _, c := range s.Changes {
			_, err := c.ApplyTo(ctx, ac).Await(ctx)
			if err != nil {
				log.Warn("Change could not be applied",
					zap.String("change_type", string(c.Type())),
					zap.Error(err))
				results = append(results, Result{Change: c, ErrorMessage: err.Error()})
				continue
			}
			results = append(results, Result{Change: c, Succeeded: true})
		}
		return results, nil
	})
}
