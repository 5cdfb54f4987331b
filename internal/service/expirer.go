package service

import (
	"context"
	"sync"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"go.uber.org/zap"
)

const defaultExpirerInterval = 1 * time.Hour

// ExpirerService periodically clears expired rows from the evaluation
// cache so stale judge responses never outlive their TTL.
type ExpirerService struct {
	cache  domain.EvaluationCache
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewExpirerService(cache domain.EvaluationCache, logger *zap.Logger) *ExpirerService {
	return &ExpirerService{
		cache:    cache,
		logger:   logger,
		interval: defaultExpirerInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ExpirerService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the expirer on a periodic schedule in a background goroutine.
func (s *ExpirerService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("cache expirer started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("cache expirer stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the expirer.
func (s *ExpirerService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *ExpirerService) run(ctx context.Context) {
	deleted, err := s.cache.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to delete expired cache entries", zap.Error(err))
	} else if deleted > 0 {
		s.logger.Info("deleted expired cache entries", zap.Int64("count", deleted))
	}
}
