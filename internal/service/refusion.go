package service

import (
	"context"
	"sync"
	"time"

	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRefusionInterval = 15 * time.Minute
	refusionBatchSize       = 100
	refusionParallelism     = 4
)

// RefusionService keeps fused claims current: on a periodic schedule it
// finds claims whose evidence changed after their latest fusion and
// re-fuses them under their default rule. Claims are independent, so the
// batch runs concurrently over immutable inputs.
type RefusionService struct {
	claims  domain.ClaimStore
	fuser   *FusionService
	logger  *zap.Logger
	metrics *metrics.Metrics

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRefusionService(cs domain.ClaimStore, fuser *FusionService, logger *zap.Logger) *RefusionService {
	return &RefusionService{
		claims:   cs,
		fuser:    fuser,
		logger:   logger,
		interval: defaultRefusionInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *RefusionService) SetInterval(d time.Duration) {
	s.interval = d
}

// SetMetrics wires the Prometheus collectors. Optional; nil means no-op.
func (s *RefusionService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Start runs the re-fusion pass on a periodic schedule in a background
// goroutine.
func (s *RefusionService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("refusion service started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				s.run(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("refusion service stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the service.
func (s *RefusionService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *RefusionService) run(ctx context.Context) {
	stale, err := s.claims.ListStale(ctx, refusionBatchSize)
	if err != nil {
		s.logger.Error("failed to list stale claims", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.RefusionRuns.Inc()
	}
	if len(stale) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refusionParallelism)

	for _, claim := range stale {
		claim := claim
		g.Go(func() error {
			_, err := s.fuser.FuseClaim(gctx, claim.TenantID, claim.ID, "")
			if err != nil {
				// A single contested claim must not stall the pass.
				s.logger.Warn("re-fusion failed",
					zap.String("claim_id", claim.ID.String()),
					zap.Error(err))
				return nil
			}
			if s.metrics != nil {
				s.metrics.RefusedClaims.Inc()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("refusion pass aborted", zap.Error(err))
		return
	}

	s.logger.Info("refusion pass complete", zap.Int("claims", len(stale)))
}
