package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/audit"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/database"
	"github.com/cornerstone-hq/cornerstone/internal/pkg/usercontext"
)

// HandleAuditList returns the newest audit events of the active account.
func HandleAuditList(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	svc := audit.NewServiceFromDB(database.GetDB())

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	events, err := svc.Recent(c.Context(), uc.AccountID, limit)
	if err != nil {
		return jsonError(c, err)
	}

	out := make([]fiber.Map, 0, len(events))
	for i := range events {
		e := &events[i]
		item := fiber.Map{
			"id":         e.ID,
			"action":     e.Action,
			"metadata":   e.Metadata(),
			"ip_address": e.IPAddress,
			"created_at": e.CreatedAt,
		}
		if e.UserID != nil {
			item["user_id"] = *e.UserID
		}
		if e.SubjectKind != "" {
			item["subject_kind"] = e.SubjectKind
			item["subject_id"] = e.SubjectID
		}
		out = append(out, item)
	}
	return c.JSON(fiber.Map{"events": out})
}
