package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/minimart/pkg/auth"
	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
	Source   string `json:"source"`
}

type loginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type authResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	IsAdmin bool   `json:"is_admin"`
	Token   string `json:"token"`
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if req.Name == "" || req.Mobile == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	if _, err := g.users.FindByMobile(c.Request.Context(), req.Mobile); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		g.logger.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	source := req.Source
	if source == "" {
		source = "web"
	}

	user := &models.User{
		Name:               req.Name,
		Mobile:             req.Mobile,
		Password:           hash,
		IsAdmin:            strings.HasPrefix(strings.ToLower(req.Name), "admin"),
		RegistrationSource: source,
	}

	id, err := g.users.Insert(c.Request.Context(), user)
	if err != nil {
		g.logger.Error("Failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	token, err := g.tokens.Issue(id.Hex(), user.IsAdmin)
	if err != nil {
		g.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		ID:      id.Hex(),
		Name:    user.Name,
		Mobile:  user.Mobile,
		IsAdmin: user.IsAdmin,
		Token:   token,
	})
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	user, err := g.users.FindByMobile(c.Request.Context(), req.Mobile)
	if err != nil || !auth.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid mobile or password"})
		return
	}

	if err := g.users.UpdateLastLogin(c.Request.Context(), user.ID, time.Now().UTC()); err != nil {
		g.logger.Warn("Failed to update last login", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}

	token, err := g.tokens.Issue(user.ID.Hex(), user.IsAdmin)
	if err != nil {
		g.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, authResponse{
		ID:      user.ID.Hex(),
		Name:    user.Name,
		Mobile:  user.Mobile,
		IsAdmin: user.IsAdmin,
		Token:   token,
	})
}

type userWithStats struct {
	*models.User
	OrderCount    int64      `json:"orderCount"`
	TotalSpent    float64    `json:"totalSpent"`
	LastOrderDate *time.Time `json:"lastOrderDate"`
}

func (g *Gateway) usersWithStats(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := g.users.FindAll(ctx)
	if err != nil {
		g.serverError(c, "Failed to list users", err)
		return
	}
	orderStats, err := g.orders.StatsByUser(ctx)
	if err != nil {
		g.serverError(c, "Failed to aggregate orders", err)
		return
	}
	sources, err := g.users.RegistrationSources(ctx)
	if err != nil {
		g.serverError(c, "Failed to aggregate registration sources", err)
		return
	}
	statusDist, err := g.orders.StatusDistribution(ctx)
	if err != nil {
		g.serverError(c, "Failed to aggregate order statuses", err)
		return
	}
	activeUsers, err := g.users.CountActiveSince(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		g.serverError(c, "Failed to count active users", err)
		return
	}
	usersWithOrders, err := g.orders.CountDistinctUsers(ctx)
	if err != nil {
		g.serverError(c, "Failed to count users with orders", err)
		return
	}
	recentOrders, err := g.orders.FindRecent(ctx, 10)
	if err != nil {
		g.serverError(c, "Failed to list recent orders", err)
		return
	}

	enriched := make([]userWithStats, 0, len(users))
	for _, u := range users {
		row := userWithStats{User: u}
		if s, ok := orderStats[u.ID]; ok {
			row.OrderCount = s.OrderCount
			row.TotalSpent = s.TotalSpent
			last := s.LastOrderDate
			row.LastOrderDate = &last
		}
		enriched = append(enriched, row)
	}

	c.JSON(http.StatusOK, gin.H{
		"users": enriched,
		"stats": gin.H{
			"totalUsers":              len(users),
			"activeUsers":             activeUsers,
			"usersWithOrders":         usersWithOrders,
			"registrationSources":     sources,
			"orderStatusDistribution": statusDist,
		},
		"recentOrders": recentOrders,
	})
}

func (g *Gateway) userAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	registrations, err := g.users.RegistrationsOverTime(ctx, 30)
	if err != nil {
		g.serverError(c, "Failed to aggregate registrations", err)
		return
	}
	activity, err := g.users.ActivityByMonth(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		g.serverError(c, "Failed to aggregate user activity", err)
		return
	}
	valueDist, err := g.orders.ValueDistribution(ctx)
	if err != nil {
		g.serverError(c, "Failed to aggregate order values", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"registrationOverTime":   registrations,
		"userActivity":           activity,
		"orderValueDistribution": valueDist,
	})
}

func (g *Gateway) userDetails(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user ID"})
		return
	}
	ctx := c.Request.Context()

	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		g.serverError(c, "Failed to load user", err)
		return
	}

	orders, err := g.orders.FindByUser(ctx, userID)
	if err != nil {
		g.serverError(c, "Failed to list orders", err)
		return
	}

	var totalSpent float64
	for _, o := range orders {
		totalSpent += o.TotalAmount
	}
	var avgOrderValue float64
	if len(orders) > 0 {
		avgOrderValue = totalSpent / float64(len(orders))
	}

	favorites, err := g.orders.FavoriteProducts(ctx, userID, 3)
	if err != nil {
		g.serverError(c, "Failed to aggregate favorite products", err)
		return
	}

	type favorite struct {
		Product *models.Product `json:"product"`
		Count   int64           `json:"count"`
	}
	favoriteList := make([]favorite, 0, len(favorites))
	if len(favorites) > 0 {
		ids := make([]primitive.ObjectID, 0, len(favorites))
		for _, f := range favorites {
			ids = append(ids, f.ProductID)
		}
		products, err := g.products.FindByIDs(ctx, ids)
		if err != nil {
			g.serverError(c, "Failed to load favorite products", err)
			return
		}
		byID := make(map[primitive.ObjectID]*models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		for _, f := range favorites {
			product := byID[f.ProductID]
			if product == nil {
				product = &models.Product{Name: "Unknown Product"}
			}
			favoriteList = append(favoriteList, favorite{Product: product, Count: f.Count})
		}
	}

	recent := orders
	if len(recent) > 5 {
		recent = recent[:5]
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              user,
		"orderCount":        len(orders),
		"totalSpent":        totalSpent,
		"averageOrderValue": avgOrderValue,
		"favoriteProducts":  favoriteList,
		"orders":            recent,
	})
}

func (g *Gateway) serverError(c *gin.Context, msg string, err error) {
	g.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}
