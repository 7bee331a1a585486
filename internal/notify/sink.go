package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/repository"
)

// Sink delivers notifications off the request path. Enqueue never
// returns an error and never blocks: a full queue drops the
// notification with a warning, workflow writes must not fail because
// a recipient could not be notified.
type Sink interface {
	Enqueue(n domain.Notification)
	Close()
}

type asyncSink struct {
	repo      repository.NotificationRepository
	redis     *redis.Client
	listLimit int64
	logger    *zap.Logger

	queue chan domain.Notification
	wg    sync.WaitGroup
	once  sync.Once
}

// NewSink starts the delivery worker. redisClient may be nil, in which
// case the per-recipient Redis mirror is skipped.
func NewSink(repo repository.NotificationRepository, redisClient *redis.Client, queueSize int, listLimit int64, logger *zap.Logger) Sink {
	if queueSize <= 0 {
		queueSize = 256
	}
	if listLimit <= 0 {
		listLimit = 100
	}
	s := &asyncSink{
		repo:      repo,
		redis:     redisClient,
		listLimit: listLimit,
		logger:    logger,
		queue:     make(chan domain.Notification, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *asyncSink) Enqueue(n domain.Notification) {
	select {
	case s.queue <- n:
	default:
		s.logger.Warn("notification queue full; dropping",
			zap.String("recipient", n.RecipientID),
			zap.String("message", n.Message))
	}
}

// Close drains the queue and stops the worker.
func (s *asyncSink) Close() {
	s.once.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}

func (s *asyncSink) run() {
	defer s.wg.Done()
	for n := range s.queue {
		s.deliver(n)
	}
}

func (s *asyncSink) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Create(ctx, &n); err != nil {
		s.logger.Warn("notification persist failed",
			zap.String("recipient", n.RecipientID),
			zap.Error(err))
		return
	}

	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	key := "notifications:" + n.RecipientID
	if err := s.redis.LPush(ctx, key, payload).Err(); err != nil {
		s.logger.Warn("notification mirror failed", zap.Error(err))
		return
	}
	_ = s.redis.LTrim(ctx, key, 0, s.listLimit-1).Err()
}

// NopSink discards everything. Used in tests and when notifications
// are disabled.
type NopSink struct{}

func (NopSink) Enqueue(domain.Notification) {}
func (NopSink) Close()                      {}
