package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/linkage"
	"github.com/edirooss/ingestwatch/internal/metrics"
	"github.com/edirooss/ingestwatch/internal/provider"
)

type TopologyOptions struct {
	// TTL controls how long we serve the in-memory snapshot; default 2m.
	TTL time.Duration
	// RefreshTimeout bounds provider work for a single refresh; default 30s.
	RefreshTimeout time.Duration
	// Allow serving stale on refresh error (graceful degrade).
	AllowStaleOnError bool
}

func (o *TopologyOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 2 * time.Minute
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 30 * time.Second
	}
}

// Topology is one snapshot of the provider listing and the hierarchy built
// from it. Snapshots are shared between callers and must not be modified.
type Topology struct {
	Resources []*resource.Resource
	Groups    []resource.Group
}

// TopologyResult lets the handler set headers/telemetry.
type TopologyResult struct {
	*Topology
	CacheHit    bool
	Stale       bool
	GeneratedAt time.Time // snapshot timestamp
}

type TopologyService struct {
	log     *zap.Logger
	src     provider.Provider
	matcher linkage.Matcher

	mu      sync.RWMutex
	cache   *Topology
	expires time.Time
	genAt   time.Time

	opts TopologyOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewTopologyService wires the provider and cache policy.
// Reuse a single instance per process (handlers call Get()).
func NewTopologyService(log *zap.Logger, src provider.Provider, matcher linkage.Matcher, opts TopologyOptions) *TopologyService {
	opts.setDefaults()

	return &TopologyService{
		log:     log.Named("topology_service"),
		src:     src,
		matcher: matcher,
		opts:    opts,
		now:     time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
// Multiple concurrent refreshes are coalesced.
func (s *TopologyService) Get(ctx context.Context) (TopologyResult, error) {
	// Fast path: fresh cache
	if res, ok := s.fresh(); ok {
		metrics.TopologyCache.WithLabelValues("hit").Inc()
		return res, nil
	}

	// Slow path: singleflight refresh
	v, err, _ := s.sg.Do("topology-refresh", func() (any, error) {
		// Double-check freshness after we won the flight
		if res, ok := s.fresh(); ok {
			return res, nil
		}
		metrics.TopologyCache.WithLabelValues("miss").Inc()

		ctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
		defer cancel()

		start := s.now()
		topo, err := s.refresh(ctx)
		if err != nil {
			// Refresh failed: optionally serve stale, else propagate error
			if s.opts.AllowStaleOnError {
				s.mu.RLock()
				cached, genAt := s.cache, s.genAt
				s.mu.RUnlock()
				if cached != nil {
					metrics.TopologyCache.WithLabelValues("stale").Inc()
					s.log.Warn("topology refresh failed; serving stale", zap.Error(err))
					return TopologyResult{Topology: cached, CacheHit: true, Stale: true, GeneratedAt: genAt}, nil
				}
			}
			return nil, err
		}

		// Publish new snapshot
		s.mu.Lock()
		s.cache = topo
		s.expires = s.now().Add(s.opts.TTL)
		s.genAt = start
		s.mu.Unlock()

		s.log.Debug("topology refreshed",
			zap.Int("resources", len(topo.Resources)),
			zap.Int("groups", len(topo.Groups)),
			zap.Duration("took", s.now().Sub(start)))

		return TopologyResult{Topology: topo, GeneratedAt: start}, nil
	})
	if err != nil {
		return TopologyResult{}, err
	}
	return v.(TopologyResult), nil
}

func (s *TopologyService) fresh() (TopologyResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cache != nil && s.now().Before(s.expires) {
		return TopologyResult{Topology: s.cache, CacheHit: true, GeneratedAt: s.genAt}, true
	}
	return TopologyResult{}, false
}

func (s *TopologyService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.genAt = time.Time{}
	s.mu.Unlock()
}

// refresh lists resources and rebuilds the hierarchy.
func (s *TopologyService) refresh(ctx context.Context) (*Topology, error) {
	rs, err := s.src.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []*resource.Resource{}
	}
	return &Topology{
		Resources: rs,
		Groups:    s.matcher.BuildHierarchy(rs),
	}, nil
}
