/**
 * @description
 * Holdings API Handlers.
 * Plain CRUD over the holdings table, scoped to the authenticated user.
 * Creating a holding also publishes a mint event for the live ticker.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - gorm.io/gorm
 */

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/snapnbuy/backend/internal/api/middleware"
	"github.com/snapnbuy/backend/internal/logger"
	"github.com/snapnbuy/backend/internal/models"
	"github.com/snapnbuy/backend/internal/services"
	"gorm.io/gorm"
)

type HoldingsHandler struct {
	DB  *gorm.DB
	Hub *services.MintTickerHub
}

func NewHoldingsHandler(db *gorm.DB, hub *services.MintTickerHub) *HoldingsHandler {
	return &HoldingsHandler{DB: db, Hub: hub}
}

// ListHoldings returns the caller's holdings, newest first.
// GET /api/v1/holdings
func (h *HoldingsHandler) ListHoldings(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var holdings []models.Holding
	if err := h.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&holdings).Error; err != nil {
		logger.Error("ListHoldings: query for user %s failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(fiber.Map{"holdings": holdings})
}

// CreateHoldingRequest defines payload for minting a new holding.
type CreateHoldingRequest struct {
	Ticker          string  `json:"ticker"`
	Name            string  `json:"name"`
	LogoURL         string  `json:"logo_url"`
	AmountInvested  float64 `json:"amount_invested"`
	Shares          float64 `json:"shares"`
	PriceAtPurchase float64 `json:"price_at_purchase"`
	CapturedImage   *string `json:"captured_image"`
}

// CreateHolding records a purchase for the caller.
// POST /api/v1/holdings
func (h *HoldingsHandler) CreateHolding(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req CreateHoldingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Ticker == "" || req.AmountInvested <= 0 || req.Shares <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ticker, amount_invested and shares are required"})
	}

	holding := models.Holding{
		UserID:          userID,
		Ticker:          req.Ticker,
		Name:            req.Name,
		LogoURL:         req.LogoURL,
		AmountInvested:  req.AmountInvested,
		Shares:          req.Shares,
		PriceAtPurchase: req.PriceAtPurchase,
		CapturedImage:   req.CapturedImage,
	}

	if err := h.DB.Create(&holding).Error; err != nil {
		logger.Error("CreateHolding: insert for user %s failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	if h.Hub != nil {
		event := services.MintEvent{
			Ticker:   holding.Ticker,
			Name:     holding.Name,
			Shares:   holding.Shares,
			Amount:   holding.AmountInvested,
			MintedAt: time.Now(),
		}
		if err := h.Hub.Publish(c.Context(), event); err != nil {
			// The purchase is already recorded; a dropped ticker event is cosmetic.
			logger.Error("CreateHolding: mint event publish failed: %v", err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(holding)
}
