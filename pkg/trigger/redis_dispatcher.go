package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lectureflow/internal/util"
	"lectureflow/pkg/domain"
)

const (
	kindRecordingUpdate = "recording_update"
	kindJobCreated      = "job_created"
)

// RedisDispatcher delivers document events over two Redis Streams with a
// consumer group. Pending messages left by a crashed consumer are reclaimed
// after claimIdle, which is where the at-least-once redelivery comes from.
// Messages are acked after the handler returns regardless of its error:
// failed runs surface through the owning record's status, never through a
// redelivery loop.
type RedisDispatcher struct {
	client          *redis.Client
	recordingStream string
	jobStream       string
	group           string
	consumerBase    string
	block           time.Duration
	claimIdle       time.Duration
	maxLen          int64
	readCount       int64
	concurrency     int
	once            sync.Once
}

// RedisDispatcherConfig configures the Redis trigger dispatcher.
type RedisDispatcherConfig struct {
	Addr            string
	Password        string
	RecordingStream string
	JobStream       string
	Group           string
	Consumer        string
	Block           time.Duration
	ClaimIdle       time.Duration
	MaxLen          int64
	ReadCount       int64
	Concurrency     int
}

// NewRedisDispatcher validates config and builds the dispatcher.
func NewRedisDispatcher(cfg RedisDispatcherConfig) (*RedisDispatcher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	recordingStream := strings.TrimSpace(cfg.RecordingStream)
	if recordingStream == "" {
		recordingStream = "triggers:recordings"
	}
	jobStream := strings.TrimSpace(cfg.JobStream)
	if jobStream == "" {
		jobStream = "triggers:jobs"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "pipeline"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 10 * time.Minute
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RedisDispatcher{
		client:          redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		recordingStream: recordingStream,
		jobStream:       jobStream,
		group:           group,
		consumerBase:    consumer,
		block:           block,
		claimIdle:       claimIdle,
		maxLen:          maxLen,
		readCount:       readCount,
		concurrency:     concurrency,
	}, nil
}

// PublishRecordingUpdate appends a recording change event.
func (d *RedisDispatcher) PublishRecordingUpdate(ctx context.Context, before, after domain.Recording) error {
	payload, err := json.Marshal(RecordingUpdate{Before: before, After: after})
	if err != nil {
		return fmt.Errorf("encode recording update: %w", err)
	}
	return d.publish(ctx, d.recordingStream, kindRecordingUpdate, payload)
}

// PublishJobCreated appends a job creation event.
func (d *RedisDispatcher) PublishJobCreated(ctx context.Context, job domain.AiJob) error {
	payload, err := json.Marshal(JobCreated{Job: job})
	if err != nil {
		return fmt.Errorf("encode job created: %w", err)
	}
	return d.publish(ctx, d.jobStream, kindJobCreated, payload)
}

func (d *RedisDispatcher) publish(ctx context.Context, stream, kind string, payload []byte) error {
	err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: d.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":    kind,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

// Start launches consumer loops for both streams.
func (d *RedisDispatcher) Start(ctx context.Context, h Handlers) {
	d.ensureGroups(ctx)
	for i := 0; i < d.concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", d.consumerBase, i)
		go d.consumeLoop(ctx, d.recordingStream, consumer, h)
		go d.consumeLoop(ctx, d.jobStream, consumer, h)
	}
}

func (d *RedisDispatcher) ensureGroups(ctx context.Context) {
	d.once.Do(func() {
		for _, stream := range []string{d.recordingStream, d.jobStream} {
			err := d.client.XGroupCreateMkStream(ctx, stream, d.group, "$").Err()
			if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
				slog.Warn("create consumer group", "stream", stream, "error", err)
			}
		}
	})
}

func (d *RedisDispatcher) consumeLoop(ctx context.Context, stream, consumer string, h Handlers) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := d.claimPending(ctx, stream, consumer); err == nil {
			for _, msg := range msgs {
				d.handleMessage(ctx, stream, msg, h)
			}
		}

		streams, err := d.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    d.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    d.readCount,
			Block:    d.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				d.handleMessage(ctx, stream, msg, h)
			}
		}
	}
}

func (d *RedisDispatcher) claimPending(ctx context.Context, stream, consumer string) ([]redis.XMessage, error) {
	res, _, err := d.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    d.group,
		Consumer: consumer,
		MinIdle:  d.claimIdle,
		Start:    "0-0",
		Count:    d.readCount,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *RedisDispatcher) handleMessage(ctx context.Context, stream string, msg redis.XMessage, h Handlers) {
	defer d.ackAndDel(ctx, stream, msg.ID)

	kind, _ := msg.Values["kind"].(string)
	payload, _ := msg.Values["payload"].(string)
	if payload == "" {
		return
	}
	var err error
	switch kind {
	case kindRecordingUpdate:
		if h.RecordingUpdated == nil {
			return
		}
		var ev RecordingUpdate
		if err = json.Unmarshal([]byte(payload), &ev); err == nil {
			err = h.RecordingUpdated(ctx, ev)
		}
	case kindJobCreated:
		if h.JobCreated == nil {
			return
		}
		var ev JobCreated
		if err = json.Unmarshal([]byte(payload), &ev); err == nil {
			err = h.JobCreated(ctx, ev)
		}
	default:
		return
	}
	if err != nil {
		slog.Error("trigger handler failed", "stream", stream, "kind", kind, "error", err)
	}
}

func (d *RedisDispatcher) ackAndDel(ctx context.Context, stream, msgID string) {
	_, _ = d.client.XAck(ctx, stream, d.group, msgID).Result()
	_, _ = d.client.XDel(ctx, stream, msgID).Result()
}
