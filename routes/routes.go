package routes

import (
	"os"
	"strings"

	"lessonpro-backend/config"
	"lessonpro-backend/controllers"
	"lessonpro-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(confirmation *controllers.ConfirmationController, scheduler *controllers.SchedulerController) *gin.Engine {
	r := gin.Default()

	origins := []string{"http://localhost:3000"}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())

	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)

		auth.Use(utils.AuthMiddleware())
		auth.GET("/me", controllers.Me)
	}

	// Public confirmation endpoint: the token is the credential, rate limited
	// to slow down token guessing.
	confirmLimiter := utils.NewRateLimiter(5, 10)
	r.POST("/confirm/:token", confirmLimiter.Middleware(), confirmation.ConfirmByToken)

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware())
	{
		clients := api.Group("/clients")
		{
			clients.POST("", controllers.CreateClient)
			clients.GET("", controllers.GetClients)
			clients.GET("/:id", controllers.GetClient)
			clients.PUT("/:id", controllers.UpdateClient)
			clients.DELETE("/:id", controllers.DeleteClient)
		}

		appointments := api.Group("/appointments")
		{
			appointments.POST("", controllers.CreateAppointment)
			appointments.GET("", controllers.GetAppointments)
			appointments.GET("/:id", controllers.GetAppointment)
			appointments.PUT("/:id/status", controllers.UpdateAppointmentStatus)
		}

		api.POST("/reminders/:id/acknowledge", confirmation.Acknowledge)

		sched := api.Group("/scheduler")
		{
			sched.GET("/status", scheduler.Status)
			sched.GET("/health", scheduler.Health)
			sched.POST("/check", scheduler.ManualCheck)
		}
	}

	return r
}
