package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/metafirst/supervisor/internal/discovery"
)

// NewDiscoveryPushHandler builds the Asynq handler for discovery pushes.
func NewDiscoveryPushHandler(svc *discovery.Service, projectSrc discovery.ProjectSource, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DiscoveryPushPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		if payload.ProjectID == 0 {
			pushed, err := svc.PushAll(ctx, payload.Force)
			if err != nil {
				return err
			}
			if logger != nil {
				logger.Info("discovery push sweep", slog.Int("pushed", pushed))
			}
			return nil
		}
		projects, err := projectSrc.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range projects {
			if p.ID != payload.ProjectID {
				continue
			}
			_, err := svc.PushProject(ctx, p, payload.Force)
			return err
		}
		// Unknown project ids are not retryable.
		return asynq.SkipRetry
	}
}
