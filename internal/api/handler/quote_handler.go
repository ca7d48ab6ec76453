package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/transflow/tms-backend/internal/core/domain"
	"github.com/transflow/tms-backend/internal/core/ports"
)

// QuoteHandler handles price quoting and post-quote fee management.
type QuoteHandler struct {
	service ports.PricingService
}

func NewQuoteHandler(service ports.PricingService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

type coordinatesRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

type addressRequest struct {
	Address     string              `json:"address"     validate:"required"`
	City        string              `json:"city"`
	PostalCode  string              `json:"postal_code" validate:"required"`
	Coordinates *coordinatesRequest `json:"coordinates,omitempty"`
}

type dimensionsRequest struct {
	LengthM float64 `json:"length_m" validate:"gte=0"`
	WidthM  float64 `json:"width_m"  validate:"gte=0"`
	HeightM float64 `json:"height_m" validate:"gte=0"`
}

type cargoRequest struct {
	WeightKg              float64           `json:"weight_kg" validate:"required,gt=0"`
	VolumeM3              float64           `json:"volume_m3" validate:"gte=0"`
	Dimensions            dimensionsRequest `json:"dimensions"`
	DeclaredValue         float64           `json:"declared_value" validate:"gte=0"`
	Hazardous             bool              `json:"hazardous"`
	RequiresRefrigeration bool              `json:"requires_refrigeration"`
	RequiresTailgate      bool              `json:"requires_tailgate"`
	Description           string            `json:"description"`
}

type quoteRequest struct {
	CustomerID      string         `json:"customer_id" validate:"required"`
	PickupAddress   addressRequest `json:"pickup_address" validate:"required"`
	DeliveryAddress addressRequest `json:"delivery_address" validate:"required"`
	Cargo           cargoRequest   `json:"cargo" validate:"required"`
	WeekendDelivery bool           `json:"weekend_delivery"`
	Urgent          bool           `json:"urgent"`
	TripID          string         `json:"trip_id"`
}

type quoteResponse struct {
	ShipmentID     string               `json:"shipment_id"`
	ShipmentNumber string               `json:"shipment_number"`
	VehicleType    string               `json:"vehicle_type"`
	DistanceKm     float64              `json:"distance_km"`
	Breakdown      domain.CostBreakdown `json:"breakdown"`
	EstimatedCost  float64              `json:"estimated_cost"`
	AppliedRules   []string             `json:"applied_rules,omitempty"`
	ValidUntil     string               `json:"valid_until"`
}

type additionalFeeRequest struct {
	Name   string  `json:"name"   validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason"`
}

// Generate handles POST /v1/quotes.
//
// @Summary      Generate a price quote
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      quoteRequest  true  "Quote request"
// @Success      201   {object}  quoteResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/quotes [post]
func (h *QuoteHandler) Generate(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	quote, err := h.service.GenerateQuote(c.Request().Context(), tenantID, ports.QuoteRequest{
		CustomerID:      req.CustomerID,
		PickupAddress:   toAddressInput(req.PickupAddress),
		DeliveryAddress: toAddressInput(req.DeliveryAddress),
		Cargo: ports.CargoInput{
			WeightKg: req.Cargo.WeightKg,
			VolumeM3: req.Cargo.VolumeM3,
			Dimensions: domain.Dimensions{
				LengthM: req.Cargo.Dimensions.LengthM,
				WidthM:  req.Cargo.Dimensions.WidthM,
				HeightM: req.Cargo.Dimensions.HeightM,
			},
			DeclaredValue:         req.Cargo.DeclaredValue,
			Hazardous:             req.Cargo.Hazardous,
			RequiresRefrigeration: req.Cargo.RequiresRefrigeration,
			RequiresTailgate:      req.Cargo.RequiresTailgate,
			Description:           req.Cargo.Description,
		},
		WeekendDelivery: req.WeekendDelivery,
		Urgent:          req.Urgent,
		TripID:          req.TripID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, quoteResponse{
		ShipmentID:     quote.ShipmentID,
		ShipmentNumber: quote.ShipmentNumber,
		VehicleType:    string(quote.VehicleType),
		DistanceKm:     quote.DistanceKm,
		Breakdown:      quote.Breakdown,
		EstimatedCost:  quote.EstimatedCost,
		AppliedRules:   quote.AppliedRules,
		ValidUntil:     quote.ValidUntil.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// AddFee handles POST /v1/shipments/:id/fees.
//
// @Summary      Append an additional fee to a shipment
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Shipment id"
// @Param        body  body      additionalFeeRequest  true  "Fee"
// @Success      200   {object}  domain.Shipment
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /v1/shipments/{id}/fees [post]
func (h *QuoteHandler) AddFee(c echo.Context) error {
	_, tenantID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req additionalFeeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	shipment, err := h.service.AddAdditionalFee(c.Request().Context(), tenantID, c.Param("id"), ports.FeeInput{
		Name:   req.Name,
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, shipment)
}

func toAddressInput(req addressRequest) ports.AddressInput {
	in := ports.AddressInput{
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
	}
	if req.Coordinates != nil {
		in.Coordinates = &domain.Coordinates{Lat: req.Coordinates.Lat, Lng: req.Coordinates.Lng}
	}
	return in
}
