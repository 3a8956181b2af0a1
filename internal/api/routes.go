/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/auth
 * - backend/internal/identity
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/api/handlers"
	"github.com/snapnbuy/backend/internal/api/middleware"
	"github.com/snapnbuy/backend/internal/auth"
	"github.com/snapnbuy/backend/internal/config"
	"github.com/snapnbuy/backend/internal/identity"
	"github.com/snapnbuy/backend/internal/integrations/quotes"
	"github.com/snapnbuy/backend/internal/integrations/vision"
	"github.com/snapnbuy/backend/internal/services"
	"gorm.io/gorm"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 1. Initialize the identity store and the auth bridge around it
	store := identity.NewStore(db, rdb, cfg)
	verifier := auth.NewVerifier(cfg.Auth.PrivyAppID, cfg.Auth.PrivyJWKSURL)
	resolver := auth.NewResolver(store, cfg.Auth.ServiceRoleSecret)
	issuer := auth.NewIssuer(store, cfg.Auth.ServiceRoleSecret)

	// 2. Initialize Services
	quoteService := services.NewQuoteService(quotes.NewClient(cfg), rdb)
	mintHub := services.NewMintTickerHub(rdb, services.MintEventChannel)

	// 3. Initialize Handlers
	authHandler := handlers.NewAuthHandler(verifier, resolver, issuer, store)
	identifyHandler := handlers.NewIdentifyHandler(vision.NewClient(cfg))
	stocksHandler := handlers.NewStocksHandler(quoteService)
	holdingsHandler := handlers.NewHoldingsHandler(db, mintHub)
	feedHandler := handlers.NewFeedHandler(mintHub, rdb)

	// 4. Define Routes
	api := app.Group("/api")
	v1 := api.Group("/v1")

	// Public Routes
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authGroup := v1.Group("/auth")
	authGroup.Post("/wallet", authHandler.Authenticate)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/signout", authHandler.SignOut)

	v1.Post("/identify", identifyHandler.IdentifyBrand)
	v1.Get("/stocks/:ticker", stocksHandler.GetQuote)

	feed := v1.Group("/feed")
	feed.Get("/mints", feedHandler.StreamMints)
	feed.Get("/prices", feedHandler.StreamPrices)

	// Holdings Routes (Protected)
	holdings := v1.Group("/holdings", middleware.Protected(store))
	holdings.Get("/", holdingsHandler.ListHoldings)
	holdings.Post("/", holdingsHandler.CreateHolding)
}
