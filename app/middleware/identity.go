package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/retailops/messaging-engine/app/dto"
)

// Identity resolves the caller from the X-User-ID header set by the internal
// API gateway and stores it in request locals. The engine trusts the gateway;
// requests without an identity are rejected.
func Identity() fiber.Handler {
	return func(c fiber.Ctx) error {
		raw := c.Get("X-User-ID")
		if raw == "" {
			return unauthorized(c, "Missing X-User-ID header")
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return unauthorized(c, "Invalid X-User-ID header")
		}
		c.Locals("user_id", uint(id))
		return c.Next()
	}
}

func unauthorized(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "UNAUTHORIZED",
		},
	})
}
