/**
 * @description
 * HTTP Handler for stock quote lookup.
 *
 * @dependencies
 * - backend/internal/services
 * - github.com/gofiber/fiber/v2
 */

package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/snapnbuy/backend/internal/integrations/quotes"
	"github.com/snapnbuy/backend/internal/logger"
	"github.com/snapnbuy/backend/internal/services"
)

type StocksHandler struct {
	Service *services.QuoteService
}

func NewStocksHandler(service *services.QuoteService) *StocksHandler {
	return &StocksHandler{Service: service}
}

// GetQuote returns the latest quote for a ticker.
// GET /api/v1/stocks/:ticker
func (h *StocksHandler) GetQuote(c *fiber.Ctx) error {
	ticker := strings.TrimSpace(c.Params("ticker"))
	if ticker == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Ticker is required"})
	}

	quote, err := h.Service.GetQuote(c.Context(), ticker)
	if err != nil {
		if errors.Is(err, quotes.ErrUnknownTicker) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Stock not found", "ticker": strings.ToUpper(ticker)})
		}
		logger.Error("GetQuote: lookup for %s failed: %v", ticker, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Quote lookup failed"})
	}

	return c.JSON(quote)
}
