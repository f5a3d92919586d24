package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoachDesk/app/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bindJSON parses and validates the body. When ok is false the 400 response
// has been written and err must be returned by the handler.
func bindJSON(c *fiber.Ctx, dst any) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, jsonError(c, fiber.StatusBadRequest, "invalid_body", "Request body could not be parsed")
	}
	if err := validate.Struct(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "validation_failed",
			"fields":  validationFields(err),
		})
	}
	return true, nil
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		name := fe.Field()
		if name != "" {
			name = strings.ToLower(name[:1]) + name[1:]
		}
		fields[name] = fe.Tag()
	}
	return fields
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// pageParams reads the 1-based page and page_size query parameters.
func pageParams(c *fiber.Ctx) (repository.Page, int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.Query("page_size", strconv.Itoa(defaultPageSize)))
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return repository.Page{Offset: (page - 1) * size, Limit: size}, page, size
}

func paged(data any, total int64, page, size int) fiber.Map {
	return fiber.Map{
		"data":     data,
		"total":    total,
		"page":     page,
		"pageSize": size,
	}
}
