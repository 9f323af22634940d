package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/example/minimart/pkg/models"
	"github.com/example/minimart/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func (g *Gateway) listProducts(c *gin.Context) {
	products, err := g.products.FindAll(c.Request.Context())
	if err != nil {
		g.serverError(c, "Failed to list products", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (g *Gateway) getProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}
	ctx := c.Request.Context()

	// Try cache first
	if cached, err := g.cache.GetProductCache(ctx, id.Hex()); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	product, err := g.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		g.serverError(c, "Failed to load product", err)
		return
	}

	if err := g.cache.CacheProduct(ctx, product); err != nil {
		g.logger.Warn("Failed to cache product", zap.String("product_id", id.Hex()), zap.Error(err))
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) createProduct(c *gin.Context) {
	price, err := strconv.ParseFloat(c.PostForm("price"), 64)
	if err != nil || price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid price"})
		return
	}
	stock, err := strconv.Atoi(c.PostForm("stock"))
	if err != nil || stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid stock"})
		return
	}
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Name is required"})
		return
	}

	product := &models.Product{
		Name:        name,
		Description: c.PostForm("description"),
		Price:       price,
		Stock:       stock,
		Category:    c.PostForm("category"),
	}

	if image, err := g.saveImage(c); err != nil {
		g.serverError(c, "Failed to store image", err)
		return
	} else if image != "" {
		product.Image = image
	}

	id, err := g.products.Insert(c.Request.Context(), product)
	if err != nil {
		g.serverError(c, "Failed to create product", err)
		return
	}
	product.ID = id

	if err := g.cache.CacheProduct(c.Request.Context(), product); err != nil {
		g.logger.Warn("Failed to cache product", zap.String("product_id", id.Hex()), zap.Error(err))
	}

	c.JSON(http.StatusCreated, product)
}

func (g *Gateway) updateProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	update := bson.M{}
	if name := c.PostForm("name"); name != "" {
		update["name"] = name
	}
	if description := c.PostForm("description"); description != "" {
		update["description"] = description
	}
	if category := c.PostForm("category"); category != "" {
		update["category"] = category
	}
	if priceStr := c.PostForm("price"); priceStr != "" {
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid price"})
			return
		}
		update["price"] = price
	}
	if stockStr := c.PostForm("stock"); stockStr != "" {
		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid stock"})
			return
		}
		update["stock"] = stock
	}

	if image, err := g.saveImage(c); err != nil {
		g.serverError(c, "Failed to store image", err)
		return
	} else if image != "" {
		update["image"] = image
	}

	product, err := g.products.Update(c.Request.Context(), id, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		g.serverError(c, "Failed to update product", err)
		return
	}

	if err := g.cache.InvalidateProduct(c.Request.Context(), id.Hex()); err != nil {
		g.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id.Hex()), zap.Error(err))
	}

	c.JSON(http.StatusOK, product)
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	if err := g.products.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		g.serverError(c, "Failed to delete product", err)
		return
	}

	if err := g.cache.InvalidateProduct(c.Request.Context(), id.Hex()); err != nil {
		g.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id.Hex()), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

func (g *Gateway) productStats(c *gin.Context) {
	stats, err := g.products.Stats(c.Request.Context())
	if err != nil {
		g.serverError(c, "Failed to aggregate product stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// saveImage stores an optional multipart "image" file under the upload dir
// and returns its relative path, or "" when no file was sent.
func (g *Gateway) saveImage(c *gin.Context) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", nil
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(file.Filename))
	dst := filepath.Join(g.config.Upload.Dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	return filepath.ToSlash(dst), nil
}
