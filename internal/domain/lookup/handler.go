package lookup

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the scan-facing resolution endpoint. It lives outside
// the versioned group because kiosk scanners have the path baked in.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:identifier", h.ResolveIdentifier)
}

func (h *Handler) ResolveIdentifier(c echo.Context) error {
	requestID, _ := c.Get("request_id").(string)
	if requestID == "" {
		requestID = c.Response().Header().Get(middleware.RequestIDHeader)
	}
	meta := RequestMeta{
		SourceIP:  c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		RequestID: requestID,
	}

	view, err := h.svc.Resolve(c.Request().Context(), c.Param("identifier"), meta)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFormat):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid medical ID format"})
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Patient not found"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Unable to look up patient"})
		}
	}
	return c.JSON(http.StatusOK, view)
}
