package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/handlers"
	mW "github.com/bartermarket/backend/internal/middleware"
	"github.com/bartermarket/backend/internal/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type application struct {
	config *config.MarketConfig
	redis  *redis.Client

	auth          handlers.AuthService
	ledger        handlers.WalletService
	listings      handlers.ListingService
	share         handlers.ShareService
	trades        handlers.TradeService
	messages      handlers.MessageService
	notifications handlers.NotificationService
	hub           *realtime.Hub
}

func (app *application) routes() http.Handler {
	authHandler := handlers.NewAuthHandler(app.auth)
	listingHandler := handlers.NewListingHandler(app.listings, app.share)
	tradeHandler := handlers.NewTradeHandler(app.trades)
	walletHandler := handlers.NewWalletHandler(app.ledger)
	messageHandler := handlers.NewMessageHandler(app.messages)
	notificationHandler := handlers.NewNotificationHandler(app.notifications)

	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Listing photos, with a placeholder for missing files
	r.Handle("/static/listing-images/*", http.StripPrefix("/static/listing-images/",
		mW.ListingImageServer("./static/listing-images")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		r.Get("/listings", listingHandler.List)
		r.Get("/listings/categories", listingHandler.Categories)
		r.Get("/listings/{id}", listingHandler.Get)
		r.Get("/listings/{id}/qr", listingHandler.QRCode)
		r.Get("/users/{id}", authHandler.PublicProfile)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/me", authHandler.Me)

			r.Post("/listings", listingHandler.Create)
			r.Put("/listings/{id}", listingHandler.Update)
			r.Post("/listings/{id}/archive", listingHandler.Archive)
			r.Delete("/listings/{id}", listingHandler.Delete)
			r.Get("/users/me/listings", listingHandler.Mine)

			r.Post("/trades", tradeHandler.Propose)
			r.Get("/trades", tradeHandler.List)
			r.Get("/trades/{id}", tradeHandler.Get)
			r.Post("/trades/{id}/respond", tradeHandler.Respond)
			r.Post("/trades/{id}/complete", tradeHandler.Complete)
			r.Post("/trades/{id}/cancel", tradeHandler.Cancel)

			r.Get("/wallet/balance", walletHandler.GetBalance)
			r.Get("/wallet/transactions", walletHandler.GetTransactions)
			r.Get("/wallet/reconcile", walletHandler.Reconcile)

			r.With(mW.RateLimit(app.redis, "messages", app.config.MessageRateLimit, app.config.MessageRateWindow)).
				Post("/messages", messageHandler.Send)
			r.Get("/conversations", messageHandler.Conversations)
			r.Get("/conversations/{userId}/messages", messageHandler.Messages)
			r.Post("/conversations/{userId}/read", messageHandler.MarkRead)

			r.Get("/notifications", notificationHandler.List)
			r.Get("/notifications/unread-count", notificationHandler.UnreadCount)
			r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
			r.Post("/notifications/read-all", notificationHandler.MarkAllRead)
			r.Get("/notifications/preferences", notificationHandler.GetPreferences)
			r.Put("/notifications/preferences", notificationHandler.SetPreference)

			r.Get("/ws", app.hub.ServeWS)
		})
	})

	return r
}
