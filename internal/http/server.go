package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/example/buildco/backend/internal/auth"
	"github.com/example/buildco/backend/internal/models"
	"github.com/example/buildco/backend/internal/service"
)

// Options carries the collaborators of the API server. Redis may be nil, which
// disables rate limiting; UploadDir may be empty when files are served elsewhere.
type Options struct {
	Maintenance  *service.MaintenanceService
	Auth         *auth.Service
	Redis        *redis.Client
	RateLimit    int
	RateWindow   time.Duration
	UploadDir    string
	UploadPrefix string
	Logger       *log.Logger
}

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine      *gin.Engine
	maintenance *service.MaintenanceService
	auth        *auth.Service
	limiter     *rateLimiter
	log         *log.Entry
}

// NewServer constructs a new API server and registers routes.
func NewServer(opts Options) *Server {
	router := gin.New()
	router.MaxMultipartMemory = 2 * models.MaxImageBytes
	srv := &Server{
		Engine:      router,
		maintenance: opts.Maintenance,
		auth:        opts.Auth,
		limiter:     newRateLimiter(opts.Redis, opts.RateLimit, opts.RateWindow),
		log:         opts.Logger.WithField("component", "http"),
	}
	router.Use(gin.Recovery(), srv.requestLogger(), localeMiddleware())
	if opts.UploadDir != "" {
		prefix := opts.UploadPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		router.Static(prefix, opts.UploadDir)
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.Engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := s.Engine.Group("/api")
	api.POST("/admin/login", s.rateLimit(), s.login)

	m := api.Group("/maintenance")
	m.POST("", s.rateLimit(), s.createRequest)
	m.GET("", s.rateLimit(), s.getMaintenance)
	m.POST("/upload", s.rateLimit(), s.uploadImage)

	admin := m.Group("", s.requireAdmin())
	admin.PATCH("/:id", s.updateRequest)
	admin.GET("/requests/:id", s.getRequest)
	admin.GET("/requests/:id/history", s.getHistory)
	admin.GET("/requests/:id/images", s.getImages)
	admin.DELETE("/requests/:id", s.deleteRequest)
	admin.DELETE("/images/:id", s.deleteImage)
}
