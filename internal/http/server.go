package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	applog "ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// Services are the application services the API drives.
type Services struct {
	Subscriptions *services.SubscriptionService
	Budgets       *services.BudgetService
	Ledger        *services.LedgerService
	Store         storage.Store
}

// Options tune the middleware stack. Zero values disable the optional parts.
type Options struct {
	RateLimitPerMinute int
	AllowedOrigins     []string
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	svc     Services
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
}

// NewServer builds the JSON API on addr.
func NewServer(addr string, svc Services, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:    svc,
		tracer: trace.NewMiddleware(opts.Logger),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.tracer.Handler())
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", trace.HeaderRequestID},
			ExposeHeaders: []string{"Content-Length", trace.HeaderRequestID},
			MaxAge:        12 * time.Hour,
		}))
	}
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		r.Use(s.limiter.Handler())
	}

	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	s.routes(r.Group("/api"))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(api *gin.RouterGroup) {
	api.GET("/accounts", s.listAccounts)
	api.POST("/accounts", s.createAccount)
	api.DELETE("/accounts/:id", s.deleteAccount)

	api.GET("/categories", s.listCategories)
	api.POST("/categories", s.createCategory)

	api.GET("/transactions", s.listTransactions)
	api.POST("/transactions", s.recordTransaction)
	api.PUT("/transactions/:id", s.updateTransaction)
	api.DELETE("/transactions/:id", s.deleteTransaction)

	api.GET("/subscriptions", s.listSubscriptions)
	api.POST("/subscriptions", s.createSubscription)
	api.GET("/subscriptions/:id", s.getSubscription)
	api.PUT("/subscriptions/:id", s.updateSubscription)
	api.DELETE("/subscriptions/:id", s.deleteSubscription)
	api.GET("/subscriptions/:id/transactions", s.listGeneratedTransactions)

	api.GET("/budgets", s.listBudgets)
	api.POST("/budgets", s.createBudget)
	api.DELETE("/budgets/:id", s.deleteBudget)
	api.GET("/budgets/:id/progress", s.budgetProgress)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.svc.Store != nil {
		if err := s.svc.Store.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Shutdown stops accepting requests and releases the middleware goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.Server.Shutdown(ctx)
}
