package routes

import (
	"errors"
	"log"
	"net/http"

	"numberrush/handlers"
	"numberrush/middleware"
	"numberrush/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	matchHandler *handlers.MatchHandler,
	hub *services.Hub,
	authService *services.AuthService,
) {
	authRequired := middleware.AuthMiddleware(authService)

	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/profile", authRequired, authHandler.GetProfile)
		}

		api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)

		matches := api.Group("/matches")
		{
			matches.GET("", matchHandler.ListMatches)
			matches.GET("/:id", matchHandler.GetMatch)
		}
	}

	// WebSocket endpoint for real-time match communication
	router.GET("/ws", authRequired, func(c *gin.Context) {
		username, _ := middleware.Username(c)

		// Refuse before upgrading so the client sees a plain HTTP status
		if hub.IsPlayerConnected(username) {
			c.JSON(http.StatusConflict, gin.H{"error": "Player already connected"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for player %s: %v", username, err)
			return
		}

		if _, err := hub.RegisterClient(conn, username, username); err != nil {
			if errors.Is(err, services.ErrAlreadyConnected) {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
			}
			log.Printf("Rejected websocket for player %s: %v", username, err)
			conn.Close()
			return
		}
		log.Printf("WebSocket connection established for player %s", username)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": hub.ConnectedCount(),
		})
	})
}
