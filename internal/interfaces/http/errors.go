package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"ecselfservice/internal/domain"
)

func handleError(c echo.Context, err error) error {
	var schema *domain.SchemaEvolutionError
	var apiErr *domain.APIError
	var invalidItem *domain.InvalidDataInstanceTypeError
	switch {
	case errors.As(err, &invalidItem):
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "internal error"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists):
		return c.JSON(stdhttp.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDeny):
		return c.JSON(stdhttp.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.As(err, &schema):
		return c.JSON(stdhttp.StatusUnprocessableEntity, map[string]any{
			"error":        schema.Detail,
			"field_errors": schema.FieldErrors,
		})
	case errors.As(err, &apiErr):
		return c.JSON(stdhttp.StatusBadGateway, map[string]string{"error": apiErr.Error()})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
