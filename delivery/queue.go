// Package delivery sends queued announcements to the chat platform from a
// small pool of workers, retrying failed sends.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"birthdaybot/models"
)

// Delivery outcomes reported to the Observer.
const (
	OutcomeSent    = "sent"
	OutcomeRetried = "retried"
	OutcomeFailed  = "failed"
)

// Sender posts a message to a channel.
type Sender interface {
	SendMessage(ctx context.Context, channelID, text string) error
}

// Observer is told about every delivery attempt.
type Observer interface {
	ObserveAnnouncement(outcome string)
}

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	Observer   Observer
}

type job struct {
	announcement models.Announcement
	attempt      int
	enqueued     time.Time
}

// Queue is an in-memory announcement dispatcher backed by goroutines.
type Queue struct {
	sender Sender

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	observer   Observer

	jobs    chan job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue delivering through sender.
func NewQueue(sender Sender, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		sender:     sender,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
		jobs:       make(chan job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Info("delivery queue started", zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for them to exit. Queued announcements
// that were not sent yet are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("delivery queue stopped", zap.Int("dropped", len(q.jobs)))
}

// Emit queues an announcement for delivery.
func (q *Queue) Emit(ctx context.Context, a models.Announcement) error {
	return q.enqueue(ctx, job{announcement: a, enqueued: time.Now().UTC()})
}

func (q *Queue) enqueue(ctx context.Context, j job) error {
	q.mu.Lock()
	qctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("delivery queue not started")
	}
	if err := qctx.Err(); err != nil {
		return fmt.Errorf("delivery queue stopped: %w", err)
	}

	select {
	case <-qctx.Done():
		return fmt.Errorf("delivery queue stopped: %w", qctx.Err())
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- j:
		return nil
	}
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case j := <-q.jobs:
			a := j.announcement
			if err := q.sender.SendMessage(q.ctx, a.ChannelID, a.Text); err != nil {
				q.handleFailure(j, err)
				continue
			}
			q.observe(OutcomeSent)
			q.logger.Info("announcement sent",
				zap.Int("worker", workerID),
				zap.String("announcement_id", a.ID.String()),
				zap.String("community_id", a.CommunityID),
				zap.String("member_id", a.MemberID),
				zap.Duration("latency", time.Since(j.enqueued)))
		}
	}
}

func (q *Queue) handleFailure(j job, err error) {
	a := j.announcement
	j.attempt++
	if j.attempt > q.maxRetries {
		q.observe(OutcomeFailed)
		q.logger.Error("announcement exceeded retries",
			zap.String("announcement_id", a.ID.String()),
			zap.String("community_id", a.CommunityID),
			zap.String("channel_id", a.ChannelID),
			zap.String("member_id", a.MemberID),
			zap.Error(err))
		return
	}
	q.observe(OutcomeRetried)
	q.logger.Warn("announcement failed, retrying",
		zap.String("announcement_id", a.ID.String()),
		zap.Int("attempt", j.attempt),
		zap.Error(err))

	go func(j job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.enqueue(q.ctx, j); err != nil {
				q.logger.Error("failed to requeue announcement",
					zap.String("announcement_id", j.announcement.ID.String()),
					zap.Error(err))
			}
		}
	}(j)
}

func (q *Queue) observe(outcome string) {
	if q.observer != nil {
		q.observer.ObserveAnnouncement(outcome)
	}
}
