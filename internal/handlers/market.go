package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"agripulse-api/internal/models"
	"agripulse-api/internal/services"
)

type MarketHandler struct {
	snapshots *services.Snapshot
}

func NewMarketHandler(snapshots *services.Snapshot) *MarketHandler {
	return &MarketHandler{
		snapshots: snapshots,
	}
}

// GetLatest handles GET /v1/market/latest
func (h *MarketHandler) GetLatest(c *fiber.Ctx) error {
	force := c.QueryBool("refresh", false)

	resp, err := h.snapshots.Latest(c.Context(), force)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, services.ErrNoData) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(models.ErrorResponse{
			Error:   "Market data unavailable",
			Message: err.Error(),
			Code:    status,
		})
	}

	return c.JSON(resp)
}

// GetHistory handles GET /v1/market/history
func (h *MarketHandler) GetHistory(c *fiber.Ctx) error {
	limit := 365
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error:   "Invalid limit",
				Message: "limit must be a positive integer",
				Code:    fiber.StatusBadRequest,
			})
		}
		limit = n
	}

	recs, err := h.snapshots.History(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to load history",
			Message: err.Error(),
			Code:    fiber.StatusInternalServerError,
		})
	}
	if recs == nil {
		recs = []models.PriceRecord{}
	}

	return c.JSON(fiber.Map{
		"records": recs,
		"count":   len(recs),
	})
}

// CustomErrorHandler handles Fiber errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Error:   "Request failed",
		Message: err.Error(),
		Code:    code,
	})
}
