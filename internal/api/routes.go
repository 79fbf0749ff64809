package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradescan/perpsignal/internal/database"
	"github.com/tradescan/perpsignal/internal/models"
	"github.com/tradescan/perpsignal/internal/services"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// RankReader reads stored ranked lists.
type RankReader interface {
	GetList(ctx context.Context, name string) ([]string, error)
}

// SignalReader reads stored signals.
type SignalReader interface {
	RecentSignals(ctx context.Context, limit int) ([]models.Signal, error)
	Stats(ctx context.Context) (*models.SignalStats, error)
}

// SetupRoutes registers the read-only HTTP surface: health, ranked
// lists, recent signals and scan status.
func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient,
	ranks RankReader, signals SignalReader, state *services.ScanState) {
	router.GET("/health", healthCheck(db, redis))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rankings/:name", getRankedList(ranks))
		v1.GET("/signals", getRecentSignals(signals))
		v1.GET("/signals/stats", getSignalStats(signals))
		v1.GET("/scan/status", getScanStatus(state))
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Services:  Services{Database: "ok", Redis: "ok"},
		}
		if db != nil {
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				response.Status = "degraded"
				response.Services.Database = "unreachable"
			}
		}
		if redis != nil {
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				response.Status = "degraded"
				response.Services.Redis = "unreachable"
			}
		}
		status := http.StatusOK
		if response.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response)
	}
}

func getRankedList(ranks RankReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		symbols, err := ranks.GetList(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if symbols == nil {
			symbols = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"name": name, "symbols": symbols})
	}
}

func getRecentSignals(signals SignalReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > 200 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
				return
			}
			limit = v
		}
		out, err := signals.RecentSignals(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if out == nil {
			out = []models.Signal{}
		}
		c.JSON(http.StatusOK, gin.H{"signals": out})
	}
}

func getSignalStats(signals SignalReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := signals.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func getScanStatus(state *services.ScanState) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now().UTC()
		c.JSON(http.StatusOK, gin.H{
			"watchlist_size": len(state.Watchlist()),
			"signals_today":  state.DailyCount(now),
			"shutting_down":  state.ShuttingDown(),
		})
	}
}
