package http

import (
	stdhttp "net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babelchat-server/internal/auth"
	"github.com/vovakirdan/babelchat-server/internal/config"
	"github.com/vovakirdan/babelchat-server/internal/core"
	"github.com/vovakirdan/babelchat-server/internal/session"
	"github.com/vovakirdan/babelchat-server/internal/store"
)

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Auth             *auth.Service
	Store            store.Store
	Bus              core.Bus
	Session          session.Deps
	OnLanguageChange LanguageChangeFunc
	Metrics          stdhttp.Handler // optional
}

// NewServer builds the HTTP server with every route mounted.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler builds the router wrapped in CORS handling.
func NewHandler(deps Deps, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	ws := NewWSHandler(deps.Auth, deps.Session, session.Options{
		SendBuffer:           cfg.SessionSendBuffer,
		WriteTimeout:         cfg.WriteTimeout,
		MaxMessagesPerMinute: cfg.MaxMessagesPerMinute,
	}, cfg.AllowedOrigins, cfg.MaxMessageBytes, logger)
	router.GET("/rooms/:room", ws.ServeRoom)

	accounts := NewAccountHandlers(deps.Auth, logger)
	profileHandlers := NewProfileHandlers(deps.Store, cfg.DefaultLanguage, deps.OnLanguageChange, logger)
	roomHandlers := NewRoomHandlers(deps.Bus, logger)

	api := router.Group("/api")
	api.POST("/register", accounts.Register)
	api.POST("/login", accounts.Login)
	api.GET("/languages", profileHandlers.ListLanguages)

	authed := api.Group("", AuthMiddleware(deps.Auth, logger))
	authed.GET("/profile", profileHandlers.GetProfile)
	authed.PATCH("/profile", profileHandlers.UpdateProfile)
	authed.GET("/rooms/:room", roomHandlers.GetRoom)

	anyOrigin := len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*")
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !anyOrigin,
	})
	return corsHandler.Handler(router)
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
