// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
	"go.uber.org/zap"
)

// QueueLengthSource reports the waiting-job count for a job type, satisfied
// by *broker.Broker.
type QueueLengthSource interface {
	RegisteredTypes() []job.Type
	Waiting(typ job.Type) int
}

// StartQueueLengthUpdater samples each registered queue's waiting count
// on a fixed interval and updates the queue_length gauge vec, mirroring the
// teacher's Redis LLen poll loop but reading the in-memory broker instead.
func StartQueueLengthUpdater(ctx context.Context, src QueueLengthSource, log *zap.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, typ := range src.RegisteredTypes() {
					QueueLength.WithLabelValues(string(typ)).Set(float64(src.Waiting(typ)))
				}
			}
		}
	}()
}
