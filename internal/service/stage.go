package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var stageTracer = otel.Tracer("service/stage")

// StageService recomputes the onboarding stage from upstream state. The
// stage is never stored; each evaluation probes the four completion
// checks plus the facility list concurrently and reduces the snapshot.
type StageService struct {
	upstream port.OnboardingStore
	cache    port.Cache[*domain.StageResult]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewStageService(upstream port.OnboardingStore, cache port.Cache[*domain.StageResult], metrics *observability.Metrics, logger *zap.Logger) *StageService {
	return &StageService{
		upstream: upstream,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// Evaluate probes upstream and reduces the snapshot to a StageResult.
// A failed probe counts its check as not-completed and flags the result
// as degraded rather than failing the whole evaluation; the dashboard
// prefers an understated progress bar over an error page.
func (s *StageService) Evaluate(ctx context.Context, creds port.Credentials) (*domain.StageResult, error) {
	ctx, span := stageTracer.Start(ctx, "StageService.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", creds.UserID))

	cacheKey := "stage:" + creds.UserID
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("stage")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("stage")

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("stage_evaluate", time.Since(start))
	}()

	var (
		mu          sync.Mutex
		snapshot    domain.StageSnapshot
		hasFacility bool
	)
	degrade := func(probe string, err error) {
		if !s.probeFailed(probe, err) {
			return
		}
		mu.Lock()
		snapshot.Degraded = true
		mu.Unlock()
	}

	// Probes run on the parent ctx rather than an errgroup-derived one:
	// a single probe failing must not cancel its siblings.
	g := new(errgroup.Group)

	g.Go(func() error {
		user, err := s.upstream.GetCommercialUser(ctx, creds)
		if err != nil {
			degrade("owner_address", err)
			return nil
		}
		snapshot.OwnerAddressSet = user != nil && user.OwnerAddress != ""
		return nil
	})
	g.Go(func() error {
		agreement, err := s.upstream.GetAgreement(ctx, creds)
		if err != nil {
			degrade("terms", err)
			return nil
		}
		snapshot.TermsAccepted = agreement != nil && agreement.TermsAccepted
		return nil
	})
	g.Go(func() error {
		info, err := s.upstream.GetFinancialInfo(ctx, creds)
		if err != nil {
			degrade("financial_info", err)
			return nil
		}
		snapshot.FinancialInfo = info != nil
		return nil
	})
	g.Go(func() error {
		entries, err := s.upstream.ListUserMeters(ctx, creds)
		if err != nil {
			degrade("meters", err)
			return nil
		}
		for _, e := range entries {
			if e.HasMeters() {
				snapshot.MeterAttached = true
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		facilities, err := s.upstream.ListFacilities(ctx, creds)
		if err != nil {
			degrade("facilities", err)
			return nil
		}
		hasFacility = len(facilities) > 0
		return nil
	})

	// Goroutines above never return errors; Wait only joins them.
	_ = g.Wait()

	stage := domain.ComputeStage(snapshot)
	result := &domain.StageResult{
		Stage:       stage,
		NextStage:   domain.NextStage(stage),
		HasFacility: hasFacility,
		Degraded:    snapshot.Degraded,
	}
	s.metrics.IncrStageResult(strconv.Itoa(stage))

	// Degraded results are not cached so the next request re-probes.
	if !snapshot.Degraded {
		s.cache.Set(cacheKey, result)
	}
	return result, nil
}

// Invalidate drops the cached stage after any write that can move it.
func (s *StageService) Invalidate(userID string) {
	s.cache.Delete("stage:" + userID)
}

// probeFailed logs and counts a probe failure. A 404 is the normal
// not-yet-completed answer, not a degradation.
func (s *StageService) probeFailed(probe string, err error) bool {
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return false
	}
	s.logger.Warn("stage probe failed, counting check as incomplete",
		zap.String("probe", probe),
		zap.Error(err),
	)
	s.metrics.IncrProbeFailure(probe)
	return true
}
