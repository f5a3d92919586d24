package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/jobqueue"
)

// QueueMonitor exposes the notification queue counters.
type QueueMonitor interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// HandleQueue reports the notification queue backlog.
func (ac *AdminController) HandleQueue(c *fiber.Ctx) error {
	if ac.queue == nil {
		return c.JSON(fiber.Map{"enabled": false})
	}
	ctx := c.UserContext()

	stats, err := ac.queue.GetJobStats(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to read queue stats", err)
	}
	pending, err := ac.queue.GetQueueSize(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to read queue size", err)
	}
	processing, err := ac.queue.GetProcessingSize(ctx)
	if err != nil {
		return ac.handleError(c, "Failed to read processing size", err)
	}
	return c.JSON(fiber.Map{
		"enabled":    true,
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}
