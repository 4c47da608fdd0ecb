// Package gin adapts the HTTP transports onto a gin router.
package gin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/digidem/comapeo-cloud/log"
)

type Server struct {
	router *gin.Engine
	logger log.Logger

	started time.Time
}

func New(logger log.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept-Language, Authorization, Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
		}
		c.Next()
	})

	// Unknown route
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "NOT_FOUND", "message": "page not found"},
		})
	})

	srv := &Server{
		router:  router,
		logger:  logger,
		started: time.Now(),
	}

	router.GET("/healthcheck", srv.healthcheck)

	return srv
}

func (s *Server) healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	}})
}

// RegisterHandler mounts a plain http.Handler on the router. Route parameters
// are handed to the handler through the request context under "params".
func (s *Server) RegisterHandler(path, method string, f http.Handler) {
	s.router.Handle(method, path, func(c *gin.Context) {
		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), "params", params)
		f.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
	})
}

// Handler returns the underlying router, ready for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}
