package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes check jobs to the queue
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishCheckJob publishes a grading job to the queue
func (p *Producer) PublishCheckJob(ctx context.Context, job *CheckJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, CheckQueueName, job); err != nil {
		return fmt.Errorf("failed to publish check job: %w", err)
	}

	slog.Info("published check job",
		"job_id", job.ID,
		"tag", job.Tag,
	)

	return nil
}

// PublishReport publishes a check report to the reports queue
func (p *Producer) PublishReport(ctx context.Context, report *CheckReport) error {
	if report.CompletedAt.IsZero() {
		report.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, ReportQueueName, report); err != nil {
		return fmt.Errorf("failed to publish check report: %w", err)
	}

	slog.Info("published check report",
		"job_id", report.JobID,
		"status", report.Status,
		"duration", report.Duration,
	)

	return nil
}

// CreateCheckJob creates a new check job for a submission
func CreateCheckJob(tag, source string, timeout int) *CheckJob {
	return &CheckJob{
		ID:        uuid.New(),
		Tag:       tag,
		Source:    source,
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}
}
