package autoapply

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/session"
	"autoapply-backend/internal/shared/server/respond"
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	Svc *Service
	// DefaultFiltered is used when the apply request carries no mode.
	DefaultFiltered bool
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, defaultFiltered bool) *Handler {
	return &Handler{Svc: svc, DefaultFiltered: defaultFiltered}
}

// RegisterRoutes attaches the /jobs routes. guard runs before every route
// that triggers outbound requests or mutates state.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	g := rg.Group("/jobs")
	g.GET("", h.listJobs)
	g.GET("/status", h.status)
	g.GET("/runs", h.listRuns)
	g.POST("/apply", chain(guard, h.apply)...)
	g.POST("/reset", chain(guard, h.reset)...)
}

func chain(guard []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guard)+1)
	out = append(out, guard...)
	return append(out, last)
}

func (h *Handler) apply(c *gin.Context) {
	filtered, ok := parseMode(c.Query("mode"), h.DefaultFiltered)
	if !ok {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "mode must be filtered or all", nil)
		return
	}

	res, err := h.Svc.TryRun(c.Request.Context(), runs.TriggerManual, filtered)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			respond.Error(c, http.StatusConflict, ErrorCodeRunInProgress, "a run is already in progress", nil)
			return
		}
		status, code := classify(err)
		c.Set("runId", res.RunID)
		respond.JSON(c, status, gin.H{
			"success":      false,
			"code":         code,
			"runId":        res.RunID,
			"appliedCount": 0,
			"appliedJobs":  res.AppliedJobs,
			"reason":       res.Reason,
		})
		return
	}

	c.Set("runId", res.RunID)
	respond.OK(c, gin.H{
		"success":             true,
		"runId":               res.RunID,
		"mode":                res.Mode,
		"appliedCount":        res.AppliedCount,
		"appliedJobs":         res.AppliedJobs,
		"matchedCount":        res.MatchedCount,
		"totalCount":          res.TotalCount,
		"skippedCount":        res.SkippedCount,
		"alreadyAppliedCount": res.AlreadyAppliedCount,
		"failedCount":         res.FailedCount,
		"cancelled":           res.Cancelled,
		"reason":              res.Reason,
	})
}

func (h *Handler) listJobs(c *gin.Context) {
	list, err := h.Svc.ListJobs(c.Request.Context())
	if err != nil {
		status, code := classify(err)
		respond.Error(c, status, code, reasonFor(err), nil)
		return
	}
	respond.OK(c, gin.H{
		"success": true,
		"count":   len(list),
		"jobs":    list,
	})
}

func (h *Handler) status(c *gin.Context) {
	st, err := h.Svc.Status(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to load status", nil)
		return
	}
	respond.OK(c, st)
}

func (h *Handler) reset(c *gin.Context) {
	h.Svc.ResetLedger()
	respond.OK(c, gin.H{
		"success": true,
		"message": "Applied jobs list cleared",
	})
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := runs.DefaultListLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	list, err := h.Svc.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to list runs", nil)
		return
	}
	respond.OK(c, gin.H{"runs": list})
}

func parseMode(raw string, def bool) (filtered bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def, true
	case runs.ModeFiltered:
		return true, true
	case runs.ModeAll:
		return false, true
	default:
		return false, false
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrMissingCredential):
		return http.StatusPreconditionFailed, ErrorCodeMissingCredential
	case errors.Is(err, session.ErrSessionExpired):
		return http.StatusUnauthorized, ErrorCodeSessionExpired
	case errors.Is(err, session.ErrAuthFailed):
		return http.StatusBadGateway, ErrorCodeAuthFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "timeout"
	default:
		return http.StatusInternalServerError, ErrorCodeInternal
	}
}
