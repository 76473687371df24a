package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/friendhub/internal/auth"
	"github.com/geocoder89/friendhub/internal/config"
	"github.com/geocoder89/friendhub/internal/friends"
	"github.com/geocoder89/friendhub/internal/http/handlers"
	"github.com/geocoder89/friendhub/internal/http/middlewares"
	"github.com/geocoder89/friendhub/internal/observability"
	"github.com/geocoder89/friendhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "friendhub"

// UserStore is the credential store every backend implements.
type UserStore interface {
	handlers.UserReader
	handlers.UserWriter
	handlers.UserLister
	friends.Store
	Ping(ctx context.Context) error
}

type Deps struct {
	Store   UserStore
	Limiter middlewares.Limiter

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.Pinger
	Tracing  bool
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if deps.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	// health
	checks := map[string]handlers.Pinger{"store": deps.Store.Ping}
	for name, ping := range deps.Checks {
		checks[name] = ping
	}
	h := handlers.NewHealthHandler(checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middlewares.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	}
	authLimit := middlewares.RateLimit(limiter, middlewares.KeyByIP, deps.Prom, log)

	// wire up services
	jwtManager := auth.NewManager(cfg.JWTSecret)
	hasher := security.NewHasher(cfg.BcryptCost)
	friendService := friends.NewService(deps.Store, log)

	authHandler := handlers.NewAuthHandler(deps.Store, deps.Store, hasher, jwtManager, deps.Prom, log)
	usersHandler := handlers.NewUsersHandler(deps.Store)
	friendsHandler := handlers.NewFriendsHandler(friendService)

	authMiddleware := middlewares.NewAuthMiddleware(jwtManager, deps.Prom, log)

	r.POST("/register", authLimit, authHandler.Register)
	r.POST("/login", authLimit, authHandler.Login)

	protected := r.Group("/")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/registrations", usersHandler.Registrations)
		protected.POST("/send-friend-request/:friendId", friendsHandler.SendFriendRequest)
		protected.GET("/friend-requests", friendsHandler.FriendRequests)
		protected.POST("/accept-friend-request/:friendId", friendsHandler.AcceptFriendRequest)
		protected.GET("/suggested-friends", friendsHandler.SuggestedFriends)
	}

	return r
}
