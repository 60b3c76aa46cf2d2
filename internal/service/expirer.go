package service

import (
	"context"
	"sync"
	"time"

	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/metrics"
	"go.uber.org/zap"
)

const defaultExpirerInterval = 1 * time.Hour

// ExpirerService deletes evidence past its expires_at timestamp on a
// periodic schedule. Expired evidence simply stops participating in the
// next fusion; past fusion records keep their audit rows.
type ExpirerService struct {
	evidence domain.EvidenceStore
	logger   *zap.Logger
	metrics  *metrics.Metrics

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewExpirerService(es domain.EvidenceStore, logger *zap.Logger) *ExpirerService {
	return &ExpirerService{
		evidence: es,
		logger:   logger,
		interval: defaultExpirerInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *ExpirerService) SetInterval(d time.Duration) {
	s.interval = d
}

// SetMetrics wires the Prometheus collectors. Optional; nil means no-op.
func (s *ExpirerService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Start runs the expirer on a periodic schedule in a background goroutine.
func (s *ExpirerService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("evidence expirer started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("evidence expirer stopped")
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
	deleted, err := s.evidence.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to delete expired evidence", zap.Error(err))
		return
	}
	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.ExpiredEvidence.Add(float64(deleted))
		}
		s.logger.Info("deleted expired evidence", zap.Int64("count", deleted))
	}
}
