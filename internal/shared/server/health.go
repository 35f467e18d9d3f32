package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autoapply-backend/internal/shared/server/respond"
)

// LedgerSizer reports how many jobs have been applied to.
type LedgerSizer interface {
	AppliedCount() int
}

// registerHealthRoutes attaches the liveness endpoint.
func registerHealthRoutes(r gin.IRoutes, ledger LedgerSizer) {
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{"ok": true}
		if ledger != nil {
			body["appliedJobsCount"] = ledger.AppliedCount()
		}
		respond.JSON(c, http.StatusOK, body)
	})
}
