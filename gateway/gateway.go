package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/example/minimart/pkg/auth"
	"github.com/example/minimart/pkg/config"
	"github.com/example/minimart/pkg/engine"
	"github.com/example/minimart/pkg/events"
	"github.com/example/minimart/pkg/notify"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const identityKey = "identity"

// Gateway is the HTTP surface over the placement engine, the catalog and the
// reporting queries.
type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	engine   *engine.Engine
	products ProductStore
	orders   OrderStore
	users    UserStore
	cache    Cache
	tokens   *auth.TokenIssuer
	producer *events.Producer
	notifier *notify.Notifier
}

type Deps struct {
	Engine   *engine.Engine
	Products ProductStore
	Orders   OrderStore
	Users    UserStore
	Cache    Cache
	Tokens   *auth.TokenIssuer
	Producer *events.Producer // optional
	Notifier *notify.Notifier // optional
}

func NewGateway(cfg *config.Config, logger *zap.Logger, deps Deps) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		engine:   deps.Engine,
		products: deps.Products,
		orders:   deps.Orders,
		users:    deps.Users,
		cache:    deps.Cache,
		tokens:   deps.Tokens,
		producer: deps.Producer,
		notifier: deps.Notifier,
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := g.router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", g.register)
			authGroup.POST("/login", g.login)
			authGroup.GET("/users-with-stats", g.protect(), g.admin(), g.usersWithStats)
			authGroup.GET("/analytics", g.protect(), g.admin(), g.userAnalytics)
			authGroup.GET("/users/:id", g.protect(), g.admin(), g.userDetails)
		}

		products := api.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
			products.GET("/stats", g.protect(), g.admin(), g.productStats)
			products.POST("", g.protect(), g.admin(), g.createProduct)
			products.PUT("/:id", g.protect(), g.admin(), g.updateProduct)
			products.DELETE("/:id", g.protect(), g.admin(), g.deleteProduct)
		}

		orders := api.Group("/orders", g.protect())
		{
			orders.POST("", g.placeOrder)
			orders.GET("/my", g.myOrders)
			orders.GET("/:id/status", g.orderStatus)
			orders.GET("", g.admin(), g.listOrders)
			orders.PUT("/:id", g.admin(), g.updateOrderStatus)
			orders.GET("/data", g.admin(), g.adminData)
			orders.GET("/low-stock", g.admin(), g.lowStock)
			orders.GET("/analytics", g.admin(), g.orderAnalytics)
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Start() error {
	addr := g.config.Server.Addr()
	g.logger.Info("Gateway starting", zap.String("address", addr))
	return g.router.Run(addr)
}

// Router exposes the configured routes for tests.
func (g *Gateway) Router() *gin.Engine {
	return g.router
}

// protect requires a valid bearer token and attaches the caller identity.
func (g *Gateway) protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}
		ident, err := g.tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// admin requires the identity attached by protect to carry the admin flag.
func (g *Gateway) admin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.identity(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not authorized as admin"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) identity(c *gin.Context) *auth.Identity {
	return c.MustGet(identityKey).(*auth.Identity)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
