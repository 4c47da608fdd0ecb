package gin

import (
	"github.com/gin-gonic/gin"

	"github.com/digidem/comapeo-cloud/auth"
	authhttp "github.com/digidem/comapeo-cloud/auth/http"
	"github.com/digidem/comapeo-cloud/bridge"
)

// RegisterSyncRoute mounts the websocket sync endpoint. The route bypasses
// the usual transport stack because the bridge takes over the connection on
// upgrade; authorization happens here, before any upgrade is attempted.
func (s *Server) RegisterSyncRoute(authorizer *auth.Authorizer, b *bridge.Bridge) {
	s.router.GET("/sync/:projectPublicId", func(c *gin.Context) {
		publicID := c.Param("projectPublicId")
		header := c.Request.Header.Get("Authorization")

		if err := authorizer.RequireProjectAuth(c.Request.Context(), header, publicID); err != nil {
			authhttp.EncodeError(c.Request.Context(), err, c.Writer)
			return
		}

		if err := b.ServeSync(c.Writer, c.Request, publicID); err != nil {
			authhttp.EncodeError(c.Request.Context(), err, c.Writer)
		}
	})
}
