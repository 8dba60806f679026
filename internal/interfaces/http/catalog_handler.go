package http

import (
	"context"
	stdhttp "net/http"

	"github.com/labstack/echo/v4"

	"ecselfservice/internal/adapters/http/middleware"
	"ecselfservice/internal/application"
	"ecselfservice/internal/domain"
)

// Catalog is the application and event catalog served by the API.
type Catalog interface {
	ListApplications(ctx context.Context) ([]domain.Application, error)
	GetApplication(ctx context.Context, name string) (domain.Application, error)
	ListEvents(ctx context.Context, appName string) ([]domain.Event, error)
	CreateApplication(ctx context.Context, name, createdBy string) (application.CreatedApplication, error)
	CreateEvent(ctx context.Context, appName, eventName, createdBy string) (domain.Event, error)
}

type CatalogHandler struct {
	catalog Catalog
}

func NewCatalogHandler(catalog Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

type createRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandler) ListApplications(c echo.Context) error {
	apps, err := h.catalog.ListApplications(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, apps)
}

func (h *CatalogHandler) GetApplication(c echo.Context) error {
	app, err := h.catalog.GetApplication(c.Request().Context(), c.Param("app_name"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, app)
}

func (h *CatalogHandler) CreateApplication(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	user, _ := middleware.CurrentUser(c)
	created, err := h.catalog.CreateApplication(c.Request().Context(), req.Name, user.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, created)
}

func (h *CatalogHandler) ListEvents(c echo.Context) error {
	events, err := h.catalog.ListEvents(c.Request().Context(), "")
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, events)
}

func (h *CatalogHandler) ListApplicationEvents(c echo.Context) error {
	events, err := h.catalog.ListEvents(c.Request().Context(), c.Param("app_name"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, events)
}

func (h *CatalogHandler) CreateEvent(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	user, _ := middleware.CurrentUser(c)
	event, err := h.catalog.CreateEvent(c.Request().Context(), c.Param("app_name"), req.Name, user.ID)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, event)
}
