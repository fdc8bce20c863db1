// Package http exposes the tap, owner and operator endpoints over fiber.
package http

import (
	"strings"

	"tapcard_server/infra/middleware"
	"tapcard_server/pkg/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// GetUserID returns the authenticated owner reference or a 401.
func GetUserID(c *fiber.Ctx) (string, error) {
	ref, ok := middleware.GetUserID(c)
	if !ok {
		return "", apperr.Unauthorized("")
	}
	return ref, nil
}

// bind parses the JSON body into dst and validates its struct tags.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperr.ValidationFailed(err.Error())
	}
	appErr := apperr.ValidationFailed("request validation failed")
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return appErr.WithDetail("fields", fields)
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput(name, "must be a UUID")
	}
	return id, nil
}

// chain returns guards followed by h in a fresh slice, so routes sharing one
// guard slice never share a backing array.
func chain(guards []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	return append(append(out, guards...), h)
}
