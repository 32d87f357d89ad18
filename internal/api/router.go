package api

import (
	"context"
	"net/http"
	"time"

	"acdmx.com/internal/api/ws"
	"acdmx.com/pkg/middleware"
	"acdmx.com/pkg/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

type Config struct {
	Addr          string        `mapstructure:"addr"`
	RateLimit     float64       `mapstructure:"rate_limit"` // 每个 ip+路由 每秒
	Burst         int           `mapstructure:"burst"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableTrace   bool          `mapstructure:"enable_trace"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
}

const serviceName = "platform-service"

// NewRouter 中间件顺序：trace -> request id -> cors -> recover -> 限流
func NewRouter(ctx context.Context, cfg Config, h *Handler, hub *ws.Hub, store *ratelimit.Store) *gin.Engine {
	r := gin.New()
	if cfg.EnableMetrics {
		// 挂 /metrics，业务指标注册在默认 registry 上一起暴露
		p := ginprom.NewPrometheus("acdm")
		p.Use(r)
	}
	if cfg.EnableTrace {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(
		middleware.ReqId(),
		cors.New(corsConfig()),
		middleware.Recover(),
	)
	if store != nil {
		r.Use(middleware.RateLimit(serviceName, store))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api/v1")
	users := api.Group("/users")
	{
		users.POST("/register", h.Register)
		users.GET("/:addr/referers", h.Referers)
		users.GET("/:addr/referrals", h.Referrals)
	}
	rounds := api.Group("/rounds")
	{
		rounds.POST("/sale", h.StartSale)
		rounds.POST("/trade", h.StartTrade)
		rounds.GET("/current", h.CurrentRound)
		rounds.GET("/:number", h.RoundHistory)
	}
	api.POST("/sale/buy", h.BuyACDM)
	orders := api.Group("/orders")
	{
		orders.GET("", h.ActiveOrders)
		orders.POST("", h.AddOrder)
		orders.GET("/:id", h.GetOrder)
		orders.DELETE("/:id", h.RemoveOrder)
		orders.POST("/:id/buy", h.BuyOrder)
	}
	params := api.Group("/params")
	{
		params.GET("", h.Params)
		params.PUT("/editor", h.SetEditor)
		params.PUT("/:name", h.SetFraction)
	}
	api.POST("/governance/execute", h.ExecuteProposal)
	ledger := api.Group("/ledger")
	{
		ledger.POST("/approve", h.Approve)
		ledger.POST("/deposit", h.Deposit)
		ledger.POST("/withdraw", h.Withdraw)
		ledger.GET("/:addr", h.Balances)
	}
	if hub != nil {
		srv := ws.NewServer(ctx, hub)
		api.GET("/ws/events", func(c *gin.Context) { srv.ServeWS(c.Writer, c.Request) })
	}
	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AllowHeaders = append(c.AllowHeaders, HeaderCaller, "X-Request-Id")
	c.ExposeHeaders = []string{"X-Request-Id"}
	return c
}

// NewStore 限流桶，janitor 跟着 ctx 退出
func NewStore(ctx context.Context, cfg Config) *ratelimit.Store {
	if cfg.RateLimit <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RateLimit * 2)
	}
	store := ratelimit.NewStore(rate.Limit(cfg.RateLimit), burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)
	return store
}

func NewHTTPServer(cfg Config, handler http.Handler) *http.Server {
	read, write := cfg.ReadTimeout, cfg.WriteTimeout
	if read <= 0 {
		read = 10 * time.Second
	}
	if write <= 0 {
		write = 10 * time.Second
	}
	return &http.Server{
		Addr:           cfg.Addr,
		Handler:        handler,
		ReadTimeout:    read,
		WriteTimeout:   write,
		MaxHeaderBytes: 1 << 20,
	}
}
