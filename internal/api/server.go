package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/db"
	"github.com/schoolerbbh/bbh-server/internal/game"
	intnet "github.com/schoolerbbh/bbh-server/internal/network"
	"github.com/schoolerbbh/bbh-server/internal/util"
)

// Version is the server version reported by the API.
const Version = "1.2.0"

// Server is the REST status API. It exposes the relay's live state for
// dashboards and a couple of admin controls; the game protocol itself stays
// on the TCP listener.
type Server struct {
	cfg      *config.Config
	registry *game.Registry
	stats    *db.StatsStore

	startedAt  time.Time
	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, registry *game.Registry, stats *db.StatsStore) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:       cfg,
		registry:  registry,
		stats:     stats,
		startedAt: time.Now(),
	}
}

// Start initializes and starts the API server.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.GetApplicationData().API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// SO_REUSEADDR for immediate rebinding after restart
	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	apiCfg := s.cfg.GetApplicationData().API

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := apiCfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(apiCfg.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/get_server_info", s.handleGetServerInfo)
		public.GET("/get_version", s.handleGetVersion)
	}

	monitor := router.Group("/api/monitor")
	{
		monitor.GET("/rooms", s.handleGetRooms)
		monitor.GET("/sessions", s.handleGetSessions)
		monitor.GET("/stats/accounts", s.handleGetAccountStats)
		monitor.GET("/stats/logins", s.handleGetRecentLogins)
	}

	control := router.Group("/api/control")
	{
		control.POST("/kick/:slot", s.handleKick)
		control.POST("/broadcast", s.handleBroadcast)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

func (s *Server) handleGetServerInfo(c *gin.Context) {
	gd := s.cfg.GetGameData()
	c.JSON(http.StatusOK, gin.H{
		"version":     Version,
		"uptime_sec":  int(time.Since(s.startedAt).Seconds()),
		"game_port":   gd.Port,
		"sessions":    s.registry.SessionCount(),
		"rooms":       s.registry.RoomCount(),
		"system_info": util.GetSystemInfo(),
	})
}

func (s *Server) handleGetRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.registry.Rooms()})
}

func (s *Server) handleGetSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.registry.Sessions()})
}

func (s *Server) handleGetAccountStats(c *gin.Context) {
	limit := queryInt(c, "limit", 25)
	stats, err := s.stats.TopAccounts(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to query account stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": stats})
}

func (s *Server) handleGetRecentLogins(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	logins, err := s.stats.RecentLogins(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to query login history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": logins})
}

func (s *Server) handleKick(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}
	if !s.registry.Kick(slot) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session on slot"})
		return
	}
	log.Info().Int("slot", slot).Str("client_ip", c.ClientIP()).Msg("session kicked via api")
	c.JSON(http.StatusOK, gin.H{"kicked": slot})
}

func (s *Server) handleBroadcast(c *gin.Context) {
	var body struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	s.registry.BroadcastChat(c.Request.Context(), body.Message)
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
