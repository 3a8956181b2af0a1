/**
 * @description
 * HTTP Handler for brand identification.
 *
 * @dependencies
 * - backend/internal/integrations/vision
 * - github.com/gofiber/fiber/v2
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/snapnbuy/backend/internal/integrations/vision"
	"github.com/snapnbuy/backend/internal/logger"
)

type IdentifyHandler struct {
	Vision *vision.Client
}

func NewIdentifyHandler(client *vision.Client) *IdentifyHandler {
	return &IdentifyHandler{Vision: client}
}

type IdentifyRequest struct {
	Image string `json:"image"` // base64 data URL
}

// IdentifyBrand classifies a captured photo into a supported stock ticker.
// POST /api/v1/identify
func (h *IdentifyHandler) IdentifyBrand(c *fiber.Ctx) error {
	var req IdentifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Image == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No image provided"})
	}

	result, err := h.Vision.IdentifyBrand(c.Context(), req.Image)
	if err != nil {
		if errors.Is(err, vision.ErrInvalidImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image format"})
		}
		logger.Error("IdentifyBrand: classification failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Identification failed"})
	}

	if result.Ticker == "" {
		return c.JSON(fiber.Map{"ticker": nil, "name": nil, "confidence": 0})
	}
	return c.JSON(result)
}
