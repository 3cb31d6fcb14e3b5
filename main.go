package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lessonpro-backend/config"
	"lessonpro-backend/controllers"
	"lessonpro-backend/models"
	"lessonpro-backend/repository"
	"lessonpro-backend/routes"
	"lessonpro-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found")
	}
	config.InitLogger()
	log := config.Log

	config.ConnectDB()
	if err := config.DB.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Appointment{},
		&models.Reminder{},
		&models.Message{},
	); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Repositories
	appointmentRepo := repository.NewAppointmentRepository(config.DB)
	reminderRepo := repository.NewReminderRepository(config.DB)
	messageRepo := repository.NewMessageRepository(config.DB)
	userRepo := repository.NewUserRepository(config.DB)
	clientRepo := repository.NewClientRepository(config.DB)

	// Services
	gateway := services.NewNotificationService(log)
	reminderService := services.NewReminderService(
		appointmentRepo, reminderRepo, messageRepo, userRepo, clientRepo, gateway, log)
	schedulerService := services.NewSchedulerService(reminderService, log)
	confirmationService := services.NewConfirmationService(reminderRepo, appointmentRepo, log)

	schedulerService.StartWithRetry()

	r := routes.SetupRouter(
		controllers.NewConfirmationController(confirmationService),
		controllers.NewSchedulerController(schedulerService),
	)
	printRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	log.Infof("Listening on :%s", port)

	// Graceful shutdown: stop the scheduler before process exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	schedulerService.Stop()
	srv.Close()
	log.Info("Shut down gracefully")
}

func printRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
