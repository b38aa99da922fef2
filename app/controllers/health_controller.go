package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/cache"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
)

// HandleUp is the liveness probe: the process answers, nothing more.
func HandleUp(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReady is the readiness probe. It fails when the database or Redis
// is unreachable.
func HandleReady(c *fiber.Ctx) error {
	checks := fiber.Map{"database": "ok", "redis": "ok"}
	healthy := true

	db := database.GetDB()
	if db == nil {
		checks["database"] = "not configured"
		healthy = false
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
		checks["database"] = "unreachable"
		healthy = false
	}

	if err := cache.Ping(); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "checks": checks})
	}
	return c.JSON(fiber.Map{"status": "ok", "checks": checks})
}
