package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/transflow/tms-backend/internal/core/domain"
)

// LocationDispatcher accepts driver position pings for asynchronous
// geofence processing.
type LocationDispatcher interface {
	Enqueue(update domain.LocationUpdate)
}

// LocationHandler ingests driver position pings. Pings are acknowledged
// immediately and processed asynchronously; geofence auto-advancement must
// never block a driver's device.
type LocationHandler struct {
	dispatcher LocationDispatcher
}

func NewLocationHandler(dispatcher LocationDispatcher) *LocationHandler {
	return &LocationHandler{dispatcher: dispatcher}
}

type locationRequest struct {
	Lat       float64   `json:"lat" validate:"latitude"`
	Lng       float64   `json:"lng" validate:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Update handles POST /v1/drivers/:id/location.
func (h *LocationHandler) Update(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req locationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	h.dispatcher.Enqueue(domain.LocationUpdate{
		TenantID:  tenantID,
		DriverID:  c.Param("id"),
		Location:  domain.Coordinates{Lat: req.Lat, Lng: req.Lng},
		Timestamp: ts,
	})

	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}
