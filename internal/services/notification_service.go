package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-installments/internal/events"
	"github.com/sjperalta/fintera-installments/internal/jobs"
	"github.com/sjperalta/fintera-installments/pkg/logger"
)

const publishTimeout = 10 * time.Second

// NotificationService hands committed domain events to the outbound
// messaging gateway without holding up the request.
type NotificationService struct {
	publisher events.Publisher
	worker    *jobs.Worker
}

func NewNotificationService(publisher events.Publisher, worker *jobs.Worker) *NotificationService {
	return &NotificationService{publisher: publisher, worker: worker}
}

// Dispatch publishes evts asynchronously. Call it only after commit.
func (s *NotificationService) Dispatch(evts ...events.Event) {
	if s == nil || s.publisher == nil || len(evts) == 0 {
		return
	}
	job := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, evts...); err != nil {
			return fmt.Errorf("publish %d events (first %s): %w", len(evts), evts[0].Type, err)
		}
		return nil
	}
	if s.worker == nil {
		if err := job(context.Background()); err != nil {
			logger.Error("failed to publish events", "error", err)
		}
		return
	}
	s.worker.EnqueueAsync(job)
}
