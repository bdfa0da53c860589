// Package api exposes the viewer over HTTP: stateless read endpoints for
// matrices, findings and graphs, plus session endpoints that drive the
// drill-down state machine for a browser front end.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/logger"
	"github.com/attacklens/attacklens/internal/navigation"
	"github.com/attacklens/attacklens/internal/telemetry"
)

// DatasetLoader loads the normalized dataset for an application; the caller
// may hand in the caching wrapper instead of the raw loader.
type DatasetLoader interface {
	Load(ctx context.Context, app string) (*artifact.Dataset, error)
}

// CollaboratorLoader fetches the out-of-band collaborator documents.
type CollaboratorLoader interface {
	LoadBreakdown(ctx context.Context, app string) (*artifact.Breakdown, error)
	LoadDiscoveryVectors(ctx context.Context, app string) ([]artifact.DiscoveryEntry, error)
}

type Server struct {
	log           *logger.Logger
	loader        DatasetLoader
	collaborators CollaboratorLoader
	sessions      *navigation.Manager
	tel           telemetry.Telemetry
}

func NewServer(log *logger.Logger, loader DatasetLoader, collaborators CollaboratorLoader, sessions *navigation.Manager, tel telemetry.Telemetry) *Server {
	return &Server{
		log:           log.WithComponent("api"),
		loader:        loader,
		collaborators: collaborators,
		sessions:      sessions,
		tel:           tel,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router(enableCORS bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(s.log))
	if enableCORS {
		router.Use(CORSMiddleware())
	}

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		apps := v1.Group("/applications/:app")
		apps.GET("/attack-paths", s.handleAttackPaths)
		apps.GET("/matrix", s.handleMatrix)
		apps.GET("/techniques/:tactic/:key/findings", s.handleTechniqueFindings)
		apps.GET("/techniques/:tactic/:key/resolution", s.handleResolution)
		apps.GET("/findings/:scenario/graph", s.handleFindingGraph)
		apps.GET("/breakdown", s.handleBreakdown)
		apps.GET("/discovery", s.handleDiscovery)

		sessions := v1.Group("/sessions")
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleSessionView)
		sessions.POST("/:id/navigate", s.handleSessionNavigate)
		sessions.POST("/:id/events", s.handleSessionEvent)
		sessions.DELETE("/:id", s.handleDeleteSession)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"healthy":   true,
		"sessions":  s.sessions.Count(),
		"timestamp": time.Now().Unix(),
	})
}
