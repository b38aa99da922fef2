package controllers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/apperrors"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
)

// requestInfo captures the request metadata recorded with audit events.
func requestInfo(c *fiber.Ctx) audit.RequestInfo {
	return audit.RequestInfo{
		IPAddress: clientIP(c),
		UserAgent: c.Get("User-Agent"),
	}
}

// clientIP prefers proxy headers over the socket address.
func clientIP(c *fiber.Ctx) string {
	if cf := c.Get("CF-Connecting-IP"); cf != "" {
		return cf
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.IP()
}

// parseUintParam reads a numeric route parameter; 0 means invalid.
func parseUintParam(c *fiber.Ctx, name string) uint {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

// jsonError maps domain errors onto the HTTP surface: 422 for validation,
// 409 for conflicts, 403/404 for the sentinels, 500 for the rest.
func jsonError(c *fiber.Ctx, err error) error {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "validation_failed",
			"field":   verr.Field,
			"message": verr.Message,
		})
	}
	var cerr *apperrors.ConflictError
	if errors.As(err, &cerr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": cerr.Message,
		})
	}
	if errors.Is(err, apperrors.ErrForbidden) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "you do not have access to this resource",
		})
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "resource not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_server_error",
		"message": "something went wrong",
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
