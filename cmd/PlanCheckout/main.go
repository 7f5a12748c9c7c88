package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	"github.com/sebuszqo/PlanCheckout/internal/billing/application"
	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
	"github.com/sebuszqo/PlanCheckout/internal/billing/infrastructure"
	billing "github.com/sebuszqo/PlanCheckout/internal/billing/interfaces"
	"github.com/sebuszqo/PlanCheckout/internal/config"
	database "github.com/sebuszqo/PlanCheckout/internal/db"
	emailService "github.com/sebuszqo/PlanCheckout/internal/email"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Missing configuration, update to start server: %v", err)
	}

	catalogue, err := plans.Load(cfg.PlansFile)
	if err != nil {
		log.Fatalf("Could not load plans: %v", err)
	}

	var (
		paymentRepo domain.PaymentRepository
		userRepo    user.Repository
		health      func(r *http.Request) map[string]string
	)
	if cfg.DatabaseURL != "" {
		dbService, err := database.NewDBService(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Could not initialize database: %v", err)
		}
		defer dbService.Close()
		paymentRepo = infrastructure.NewPaymentRepository(dbService.DB)
		userRepo = user.NewUserRepository(dbService.DB)
		health = func(r *http.Request) map[string]string { return dbService.Health(r.Context()) }
	} else {
		log.Println("DB_CONNECTION_STRING not set, keeping payments and users in memory")
		paymentRepo = infrastructure.NewMemoryPaymentRepository(nil)
		userRepo = user.NewMemoryRepository()
	}

	newEmailService, err := emailService.NewEmailService(emailService.Config{
		From:     cfg.EmailAddress,
		Password: cfg.EmailPassword,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: strconv.Itoa(cfg.SMTPPort),
	})
	if err != nil {
		log.Fatalf("Could not initialize email service: %v", err)
	}
	defer newEmailService.Close()

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		log.Fatalf("Could not initialize JWT manager: %v", err)
	}

	userService := user.NewUserService(userRepo, newEmailService)
	userHandler := user.NewHandler(userService)

	provider := infrastructure.NewSandboxProvider(cfg.SandboxSettleAfter, cfg.CheckoutBaseURL)
	paymentService := application.NewPaymentService(paymentRepo, provider, catalogue, userService, jwtManager)
	paymentHandler := billing.NewPaymentHandler(paymentService, respondJSON, respondError)

	authHandler := auth.NewHandler(auth.NewAuthService(userService, jwtManager))
	server := NewServer(paymentHandler, userHandler, authHandler, userService, jwtManager)
	server.health = health
	server.RegisterRoutes()

	scheduler, err := StartSweeper(application.NewSweeper(paymentRepo, cfg.PendingTTL))
	if err != nil {
		log.Fatalf("Scheduler didn't start, stopping the app: %v", err)
	}
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on %s...", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
	log.Println("Server stopped")
}

func StartSweeper(sweeper *application.Sweeper) (*cron.Cron, error) {
	c := cron.New()
	if err := sweeper.Schedule(c); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
