package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// ShipmentHandler exposes the shipment lifecycle over HTTP. Every route is
// tenant-scoped through the JWT claims; the handler never trusts a tenant id
// from the request body.
type ShipmentHandler struct {
	service ports.ShipmentService
}

func NewShipmentHandler(service ports.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{service: service}
}

// --- Request types ---

type assignDriverRequest struct {
	DriverID  string `json:"driver_id"  validate:"required"`
	VehicleID string `json:"vehicle_id"`
}

type driverActionRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
	Notes    string `json:"notes"`
}

type acknowledgeRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
	Accepted *bool  `json:"accepted"  validate:"required"`
	Note     string `json:"note"`
}

type completeShipmentRequest struct {
	ActualCost *float64 `json:"actual_cost" validate:"omitempty,gte=0"`
}

type cancelShipmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type convertQuoteRequest struct {
	ActualCost *float64 `json:"actual_cost" validate:"omitempty,gte=0"`
}

type listShipmentsResponse struct {
	Shipments []*domain.Shipment `json:"shipments"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	Limit     int                `json:"limit"`
}

// Get handles GET /v1/shipments/:id.
func (h *ShipmentHandler) Get(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	shipment, err := h.service.Get(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// GetByNumber handles GET /v1/shipments/number/:number.
func (h *ShipmentHandler) GetByNumber(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	shipment, err := h.service.GetByNumber(c.Request().Context(), tenantID, c.Param("number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// List handles GET /v1/shipments.
func (h *ShipmentHandler) List(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	filter := ports.ListShipmentsFilter{
		Status:     domain.ShipmentStatus(c.QueryParam("status")),
		CustomerID: c.QueryParam("customer_id"),
		DriverID:   c.QueryParam("driver_id"),
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 20),
	}
	if from := c.QueryParam("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = t
		}
	}
	if to := c.QueryParam("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = t
		}
	}

	shipments, total, err := h.service.List(c.Request().Context(), tenantID, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, listShipmentsResponse{
		Shipments: shipments,
		Total:     total,
		Page:      filter.Page,
		Limit:     filter.Limit,
	})
}

// Confirm handles POST /v1/shipments/:id/confirm.
func (h *ShipmentHandler) Confirm(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	shipment, err := h.service.Confirm(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// Convert handles POST /v1/shipments/:id/convert — quote to shipment.
func (h *ShipmentHandler) Convert(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req convertQuoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	shipment, err := h.service.ConvertQuoteToShipment(c.Request().Context(), tenantID, c.Param("id"), req.ActualCost)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// AssignDriver handles POST /v1/shipments/:id/assign.
func (h *ShipmentHandler) AssignDriver(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req assignDriverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shipment, err := h.service.AssignDriver(c.Request().Context(), tenantID, ports.AssignDriverInput{
		ShipmentID: c.Param("id"),
		DriverID:   req.DriverID,
		VehicleID:  req.VehicleID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// Acknowledge handles POST /v1/shipments/:id/acknowledge — driver accepts
// or declines an assignment.
func (h *ShipmentHandler) Acknowledge(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req acknowledgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shipment, err := h.service.AcknowledgeAssignment(c.Request().Context(), tenantID, ports.AcknowledgeInput{
		ShipmentID: c.Param("id"),
		DriverID:   req.DriverID,
		Accepted:   *req.Accepted,
		Note:       req.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// StartPickup handles POST /v1/shipments/:id/pickup.
func (h *ShipmentHandler) StartPickup(c echo.Context) error {
	return h.driverTransition(c, h.service.StartPickup)
}

// StartTransit handles POST /v1/shipments/:id/transit.
func (h *ShipmentHandler) StartTransit(c echo.Context) error {
	return h.driverTransition(c, h.service.StartTransit)
}

// CompleteDelivery handles POST /v1/shipments/:id/deliver.
func (h *ShipmentHandler) CompleteDelivery(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req driverActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shipment, err := h.service.CompleteDelivery(c.Request().Context(), tenantID, c.Param("id"), req.DriverID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// Complete handles POST /v1/shipments/:id/complete — back office closes out
// the shipment, optionally overriding the actual cost.
func (h *ShipmentHandler) Complete(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req completeShipmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	shipment, err := h.service.CompleteShipment(c.Request().Context(), tenantID, c.Param("id"), req.ActualCost)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

// Cancel handles POST /v1/shipments/:id/cancel.
func (h *ShipmentHandler) Cancel(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req cancelShipmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shipment, err := h.service.Cancel(c.Request().Context(), tenantID, c.Param("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

type transitionFunc func(ctx context.Context, tenantID, shipmentID, driverID string) (*domain.Shipment, error)

func (h *ShipmentHandler) driverTransition(c echo.Context, fn transitionFunc) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req driverActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shipment, err := fn(c.Request().Context(), tenantID, c.Param("id"), req.DriverID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, shipment)
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
