package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// PayrollHandler exposes driver commission calculation. It resolves the
// shipment, driver and optional trip aggregates before delegating to the
// salary service, so the service stays free of repository plumbing for its
// inputs.
type PayrollHandler struct {
	salary    ports.DriverSalaryService
	shipments ports.ShipmentService
	drivers   ports.DriverRepository
	trips     ports.TripRepository
}

func NewPayrollHandler(salary ports.DriverSalaryService, shipments ports.ShipmentService, drivers ports.DriverRepository, trips ports.TripRepository) *PayrollHandler {
	return &PayrollHandler{
		salary:    salary,
		shipments: shipments,
		drivers:   drivers,
		trips:     trips,
	}
}

type commissionRequest struct {
	ShipmentID string `json:"shipment_id" validate:"required"`
}

type batchCommissionRequest struct {
	DriverID    string   `json:"driver_id"    validate:"required"`
	ShipmentIDs []string `json:"shipment_ids" validate:"required,min=1"`
}

type batchCommissionResponse struct {
	DriverID string                            `json:"driver_id"`
	Results  []*domain.SalaryCalculationResult `json:"results"`
}

// Calculate handles POST /v1/payroll/commissions.
//
// @Summary      Calculate the driver commission for one shipment
// @Tags         payroll
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      commissionRequest  true  "Shipment reference"
// @Success      200   {object}  domain.SalaryCalculationResult
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/payroll/commissions [post]
func (h *PayrollHandler) Calculate(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req commissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	shipment, err := h.shipments.Get(ctx, tenantID, req.ShipmentID)
	if err != nil {
		return err
	}
	if shipment.DriverID == "" {
		return domain.ErrDriverNotAssigned
	}

	driver, err := h.drivers.Get(ctx, tenantID, shipment.DriverID)
	if err != nil {
		return err
	}

	var trip *domain.Trip
	if shipment.TripID != "" {
		trip, err = h.trips.Get(ctx, tenantID, shipment.TripID)
		if err != nil && !errors.Is(err, domain.ErrTripNotFound) {
			return err
		}
	}

	result, err := h.salary.CalculateCommission(ctx, tenantID, shipment, driver, trip)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// CalculateBatch handles POST /v1/payroll/commissions/batch.
//
// @Summary      Calculate commissions for a batch of shipments
// @Tags         payroll
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      batchCommissionRequest  true  "Driver and shipments"
// @Success      200   {object}  batchCommissionResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/payroll/commissions/batch [post]
func (h *PayrollHandler) CalculateBatch(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req batchCommissionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	driver, err := h.drivers.Get(ctx, tenantID, req.DriverID)
	if err != nil {
		return err
	}

	shipments := make([]*domain.Shipment, 0, len(req.ShipmentIDs))
	for _, id := range req.ShipmentIDs {
		shipment, err := h.shipments.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		shipments = append(shipments, shipment)
	}

	results, err := h.salary.CalculateBatchCommissions(ctx, tenantID, shipments, driver)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, batchCommissionResponse{
		DriverID: req.DriverID,
		Results:  results,
	})
}
