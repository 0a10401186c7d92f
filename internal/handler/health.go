package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health implements GET /health, reporting the default profile's upstream.
func (rt *Router) Health(c *gin.Context) {
	snap := rt.Store.Snapshot()
	upstream := ""
	if snap.DefaultProfile != nil {
		upstream = snap.DefaultProfile.Upstream.BaseURL
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "upstream": upstream})
}
