package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/ingestwatch/internal/resolver"
	"github.com/edirooss/ingestwatch/internal/service"
)

// InputStatusHandler serves GET /api/channels/:id/input-status.
type InputStatusHandler struct {
	log  *zap.Logger
	res  *resolver.Resolver
	topo *service.TopologyService
}

func NewInputStatusHandler(log *zap.Logger, res *resolver.Resolver, topo *service.TopologyService) *InputStatusHandler {
	return &InputStatusHandler{
		log:  log.Named("input_status"),
		res:  res,
		topo: topo,
	}
}

// InputStatus returns the channel's resolution record.
//
// The cached topology is used to find the channel's group so the resolver
// skips its own listing. When the topology is unavailable the channel is
// resolved directly, which never fails.
//
// Status Codes:
//   - 200 OK → resolver.Record
//   - 404 Not Found → the listing has no channel with this id
func (h *InputStatusHandler) InputStatus(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	topo, err := h.topo.Get(ctx)
	if err != nil {
		h.log.Warn("topology unavailable; resolving without it", zap.String("channel_id", id), zap.Error(err))
		c.JSON(http.StatusOK, h.res.Resolve(ctx, id))
		return
	}

	for _, g := range topo.Groups {
		if g.Parent.ID == id && g.Parent.IsChannel() {
			c.JSON(http.StatusOK, h.res.ResolveGroup(ctx, g))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "channel not found"})
}
