package trigger

import (
	"context"

	"lectureflow/pkg/domain"
)

// RecordingUpdate is delivered when a recording document changes. It carries
// before/after snapshots so handlers can detect which field actually moved.
type RecordingUpdate struct {
	Before domain.Recording `json:"before"`
	After  domain.Recording `json:"after"`
}

// JobCreated is delivered once per new AI job document.
type JobCreated struct {
	Job domain.AiJob `json:"job"`
}

// Handlers receive dispatched document events. Delivery is at-least-once:
// a handler may see the same event again after a consumer crash, so it must
// guard on the stored status rather than on the event itself. Handler errors
// are terminal for that delivery; the dispatcher never redrives on error.
type Handlers struct {
	RecordingUpdated func(ctx context.Context, ev RecordingUpdate) error
	JobCreated       func(ctx context.Context, ev JobCreated) error
}

// Dispatcher publishes and delivers document change events.
type Dispatcher interface {
	PublishRecordingUpdate(ctx context.Context, before, after domain.Recording) error
	PublishJobCreated(ctx context.Context, job domain.AiJob) error
	Start(ctx context.Context, h Handlers)
}

// LocalDispatcher invokes handlers synchronously in-process. It backs tests
// and single-node development where Redis is not running.
type LocalDispatcher struct {
	handlers Handlers
}

// NewLocalDispatcher returns an empty local dispatcher; events published
// before Start are dropped.
func NewLocalDispatcher() *LocalDispatcher {
	return &LocalDispatcher{}
}

// Start registers the handlers.
func (d *LocalDispatcher) Start(_ context.Context, h Handlers) {
	d.handlers = h
}

// PublishRecordingUpdate delivers the event inline.
func (d *LocalDispatcher) PublishRecordingUpdate(ctx context.Context, before, after domain.Recording) error {
	if d.handlers.RecordingUpdated == nil {
		return nil
	}
	return d.handlers.RecordingUpdated(ctx, RecordingUpdate{Before: before, After: after})
}

// PublishJobCreated delivers the event inline.
func (d *LocalDispatcher) PublishJobCreated(ctx context.Context, job domain.AiJob) error {
	if d.handlers.JobCreated == nil {
		return nil
	}
	return d.handlers.JobCreated(ctx, JobCreated{Job: job})
}
