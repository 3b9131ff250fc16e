package handlers

import (
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/apperrors"
	"github.com/distributed-ecommerce-saga/storefront-functions/internal/auth"
	sharedHTTP "github.com/distributed-ecommerce-saga/storefront-functions/internal/http"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError logs internal failures with their cause before the response
// collapses them to a generic message.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	if apperrors.KindOf(err) == apperrors.Internal {
		logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return sharedHTTP.ErrorResponse(c, err)
}

func parseError(c *fiber.Ctx, err error) error {
	return sharedHTTP.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
		"parse_error": err.Error(),
	})
}

// requireCaller rejects the request before its body is read when check
// fails for the caller resolved by auth.Middleware.
func requireCaller(logger *zap.Logger, check func(*auth.Caller) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := check(auth.FromContext(c)); err != nil {
			return respondError(c, logger, err)
		}
		return c.Next()
	}
}
