package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/ingestwatch/internal/domain/resource"
	"github.com/edirooss/ingestwatch/internal/linkage"
	"github.com/edirooss/ingestwatch/internal/resolver"
	"github.com/edirooss/ingestwatch/internal/service"
)

// TopologyHandler serves the resource listing and the channel/flow hierarchy.
//
//   - GET  /api/resources   → flat, filtered resource list
//   - GET  /api/topology    → filtered hierarchy, optionally with failover map
//   - POST /api/cache/clear → drop the cached snapshot
type TopologyHandler struct {
	log      *zap.Logger
	topo     *service.TopologyService
	failover *service.FailoverService
}

func NewTopologyHandler(log *zap.Logger, topo *service.TopologyService, failover *service.FailoverService) *TopologyHandler {
	return &TopologyHandler{
		log:      log.Named("topology"),
		topo:     topo,
		failover: failover,
	}
}

// TopologyResponse is the body of GET /api/topology.
type TopologyResponse struct {
	Groups   []resource.Group            `json:"groups"`
	Total    int                         `json:"total"`
	Failover map[string]*resolver.Record `json:"failover,omitempty"`
}

func filterFromQuery(c *gin.Context) linkage.Filter {
	return linkage.Filter{
		Service: strings.TrimSpace(c.Query("service")),
		Status:  strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Keyword: strings.TrimSpace(c.Query("q")),
	}
}

// Resources handles GET /api/resources.
//
// Status Codes:
//   - 200 OK → JSON array of resources; X-Total-Count header
//   - 500 Internal Server Error
func (h *TopologyHandler) Resources(c *gin.Context) {
	res, err := h.get(c)
	if err != nil {
		return
	}

	f := filterFromQuery(c)
	out := make([]*resource.Resource, 0, len(res.Resources))
	for _, r := range res.Resources {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	c.Header("X-Total-Count", strconv.Itoa(len(out)))
	c.JSON(http.StatusOK, out)
}

// Topology handles GET /api/topology.
//
// Query: service, status, q (keyword), force=1 (bypass cache),
// failover=1 (attach resolution records for channels with linked flows).
//
// Status Codes:
//   - 200 OK → TopologyResponse
//   - 500 Internal Server Error
func (h *TopologyHandler) Topology(c *gin.Context) {
	res, err := h.get(c)
	if err != nil {
		return
	}

	groups := linkage.FilterHierarchy(res.Groups, filterFromQuery(c))
	body := TopologyResponse{Groups: groups, Total: len(groups)}

	if c.Query("failover") == "1" {
		fm, err := h.failover.FailoverMap(c.Request.Context(), groups)
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		body.Failover = fm
	}

	c.Header("X-Total-Count", strconv.Itoa(body.Total))
	c.JSON(http.StatusOK, body)
}

// ClearCache handles POST /api/cache/clear.
func (h *TopologyHandler) ClearCache(c *gin.Context) {
	h.topo.Invalidate()
	h.log.Info("topology cache cleared")
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
}

// get reads the snapshot (honouring ?force=1), sets cache headers and
// writes the error response itself on failure.
func (h *TopologyHandler) get(c *gin.Context) (service.TopologyResult, error) {
	if c.Query("force") == "1" {
		h.topo.Invalidate()
	}

	res, err := h.topo.Get(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return res, err
	}

	// Friendly cache headers for debugging/observability
	cache := map[bool]string{true: "HIT", false: "MISS"}[res.CacheHit]
	if res.Stale {
		cache = "STALE"
	}
	c.Header("X-Cache", cache)
	c.Header("X-Generated-At", strconv.FormatInt(res.GeneratedAt.UnixMilli(), 10))
	return res, nil
}
