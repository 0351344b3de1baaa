package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"estate-backend/controllers"
	"estate-backend/middleware"
	"estate-backend/services"
)

func corsOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}

// SetupRouter wires controllers onto a gin engine.
func SetupRouter(
	pc *controllers.ProjectController,
	ac *controllers.AuthController,
	auth *services.AuthService,
	origins []string,
	log *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(log))

	origins = corsOrigins(origins)
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "X-Cache"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.Session(auth))
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", ac.Login)
		}

		projects := api.Group("/projects")
		{
			projects.GET("", pc.ListProjects)
			projects.GET("/:status", pc.ListProjectsByStatus)
			projects.GET("/:status/:id", pc.GetProjectByStatus)
		}

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			adminProjects := admin.Group("/projects")
			adminProjects.GET("", pc.ListManagedProjects)
			adminProjects.POST("", pc.CreateProject)
			adminProjects.GET("/:id", pc.GetProject)
			adminProjects.GET("/:id/activity", pc.GetProjectActivity)
			adminProjects.PUT("/:id", pc.UpdateProject)
			adminProjects.DELETE("/:id", pc.DeleteProject)
		}
	}

	return r
}
