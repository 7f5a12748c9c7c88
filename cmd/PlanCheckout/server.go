package main

import (
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	billing "github.com/sebuszqo/PlanCheckout/internal/billing/interfaces"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

type Response struct {
	Message string `json:"message"`
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("Started %s %s", r.Method, r.URL.Path)

		next.ServeHTTP(w, r)

		log.Printf("Completed %s in %v", r.URL.Path, time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("could not encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, errors ...[]string) {
	payload := map[string]interface{}{
		"status":  "error",
		"message": message,
		"code":    status,
	}
	if len(errors) > 0 && len(errors[0]) > 0 {
		payload["errors"] = errors[0]
	}
	respondJSON(w, status, payload)
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusNotFound, Response{Message: "Path not found"})
}

type Server struct {
	router         *http.ServeMux
	paymentHandler *billing.PaymentHandler
	userHandler    *user.Handler
	authHandler    *auth.Handler
	jwtManager     auth.JWTManagerInterface
	userService    user.Service
	// health reports on the database; nil when everything is in memory.
	health func(r *http.Request) map[string]string
}

func NewServer(paymentHandler *billing.PaymentHandler, userHandler *user.Handler, authHandler *auth.Handler, userService user.Service, jwtManager auth.JWTManagerInterface) *Server {
	return &Server{
		paymentHandler: paymentHandler,
		userHandler:    userHandler,
		authHandler:    authHandler,
		userService:    userService,
		jwtManager:     jwtManager,
		router:         http.NewServeMux(),
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ready"}
	status := http.StatusOK
	if s.health != nil {
		for k, v := range s.health(r) {
			body["db_"+k] = v
		}
		if body["db_status"] == "down" {
			body["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, body)
}

var sandboxCheckoutPage = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html><head><title>Sandbox checkout</title></head>
<body>
<h1>Sandbox checkout</h1>
<p>Transaction <strong>{{.}}</strong> is being processed. Return to the checkout app; it will confirm the payment shortly.</p>
</body></html>`))

func (s *Server) handleSandboxCheckout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := sandboxCheckoutPage.Execute(w, r.PathValue("txRef")); err != nil {
		log.Printf("could not render checkout page: %v", err)
	}
}

func (s *Server) RegisterRoutes() {
	// Public routes
	publicRoutes := http.NewServeMux()
	publicRoutes.Handle("POST /api/payments/initialize", http.HandlerFunc(s.paymentHandler.InitializePayment))
	publicRoutes.Handle("GET /api/payments/verify/{txRef}", http.HandlerFunc(s.paymentHandler.VerifyPayment))
	publicRoutes.Handle("POST /api/payments/verify-registration", http.HandlerFunc(s.paymentHandler.VerifyRegistration))
	publicRoutes.Handle("GET /api/plans", http.HandlerFunc(s.paymentHandler.GetPlans))
	publicRoutes.Handle("GET /api/ready", http.HandlerFunc(s.handleReady))
	publicRoutes.Handle("POST /api/auth/login", http.HandlerFunc(s.authHandler.HandleLogin))

	// Protected routes
	requireToken := auth.JWTAccessTokenMiddleware(s.jwtManager, s.userService.Exists)
	publicRoutes.Handle("GET /api/account", requireToken(http.HandlerFunc(s.userHandler.HandleAccount)))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/api/", publicRoutes)
	mainRouter.Handle("GET /checkout/{txRef}", http.HandlerFunc(s.handleSandboxCheckout))
	mainRouter.Handle("/", http.HandlerFunc(notFoundHandler))

	s.router = mainRouter
}

func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.router)
}
