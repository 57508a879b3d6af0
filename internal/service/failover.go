package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/resolver"
)

// DefaultFailoverConcurrency bounds parallel resolutions in FailoverMap.
const DefaultFailoverConcurrency = 10

// GroupResolver resolves a channel whose hierarchy group is already known.
type GroupResolver interface {
	ResolveGroup(ctx context.Context, g resource.Group) *resolver.Record
}

// FailoverService computes resolution records for the channels of a
// hierarchy.
type FailoverService struct {
	log         *zap.Logger
	res         GroupResolver
	concurrency int
}

func NewFailoverService(log *zap.Logger, res GroupResolver, concurrency int) *FailoverService {
	if concurrency <= 0 {
		concurrency = DefaultFailoverConcurrency
	}
	return &FailoverService{
		log:         log.Named("failover_service"),
		res:         res,
		concurrency: concurrency,
	}
}

// FailoverMap resolves every group that has linked flows, keyed by channel
// id. Groups without children are skipped. Resolution never fails, so the
// only error is the context's.
func (s *FailoverService) FailoverMap(ctx context.Context, groups []resource.Group) (map[string]*resolver.Record, error) {
	out := make(map[string]*resolver.Record)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, grp := range groups {
		if len(grp.Children) == 0 || !grp.Parent.IsChannel() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := s.res.ResolveGroup(gctx, grp)
			mu.Lock()
			out[grp.Parent.ID] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.Debug("failover map computed", zap.Int("channels", len(out)))
	return out, nil
}
