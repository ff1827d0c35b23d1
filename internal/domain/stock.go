package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockType distinguishes material stock (inbound) from product stock (outbound)
type StockType string

// Possible stock types
const (
	StockTypeMaterial StockType = "MATERIAL"
	StockTypeProduct  StockType = "PRODUCT"
)

// ItemUnit is the measurement unit of a stock quantity, using the Catena-X
// item unit identifiers.
type ItemUnit string

// Supported item units
const (
	ItemUnitPiece           ItemUnit = "unit:piece"
	ItemUnitSet             ItemUnit = "unit:set"
	ItemUnitPair            ItemUnit = "unit:pair"
	ItemUnitPage            ItemUnit = "unit:page"
	ItemUnitCycle           ItemUnit = "unit:cycle"
	ItemUnitKilogram        ItemUnit = "unit:kilogram"
	ItemUnitGram            ItemUnit = "unit:gram"
	ItemUnitKilowattHour    ItemUnit = "unit:kilowattHour"
	ItemUnitMegawattHour    ItemUnit = "unit:megawattHour"
	ItemUnitLitre           ItemUnit = "unit:litre"
	ItemUnitMillilitre      ItemUnit = "unit:millilitre"
	ItemUnitCubicCentimetre ItemUnit = "unit:cubicCentimetre"
	ItemUnitCubicMetre      ItemUnit = "unit:cubicMetre"
	ItemUnitMetre           ItemUnit = "unit:metre"
	ItemUnitCentimetre      ItemUnit = "unit:centimetre"
	ItemUnitMillimetre      ItemUnit = "unit:millimetre"
	ItemUnitSquareMetre     ItemUnit = "unit:squareMetre"
	ItemUnitTonneMetricTon  ItemUnit = "unit:tonneMetricTon"
)

// IsValid reports whether u is a supported item unit.
func (u ItemUnit) IsValid() bool {
	switch u {
	case ItemUnitPiece, ItemUnitSet, ItemUnitPair, ItemUnitPage, ItemUnitCycle,
		ItemUnitKilogram, ItemUnitGram, ItemUnitKilowattHour, ItemUnitMegawattHour,
		ItemUnitLitre, ItemUnitMillilitre, ItemUnitCubicCentimetre, ItemUnitCubicMetre,
		ItemUnitMetre, ItemUnitCentimetre, ItemUnitMillimetre, ItemUnitSquareMetre,
		ItemUnitTonneMetricTon:
		return true
	default:
		return false
	}
}

// Common validation errors for stock records
var (
	ErrNegativeQuantity       = errors.New("stock quantity cannot be negative")
	ErrInvalidItemUnit        = errors.New("invalid measurement unit")
	ErrEmptyMaterial          = errors.New("stock material number cannot be empty")
	ErrIncompleteOrderRef     = errors.New("customer order number and position must be set together")
	ErrSupplierOrderWithout   = errors.New("supplier order number requires a customer order number")
	ErrUnexpectedStockType    = errors.New("unexpected stock type")
	ErrMissingLastUpdatedDate = errors.New("stock last updated date cannot be empty")
)

// MaterialDto identifies the material a stock record refers to.
// The customer and supplier numbers are the partner-facing identifiers.
type MaterialDto struct {
	OwnMaterialNumber      string `json:"ownMaterialNumber,omitempty"`
	MaterialNumberCustomer string `json:"materialNumberCustomer,omitempty"`
	MaterialNumberSupplier string `json:"materialNumberSupplier,omitempty"`
	MaterialNumberCx       string `json:"materialNumberCx,omitempty"`
	Name                   string `json:"name,omitempty"`
}

// Identified reports whether at least one material number is present.
func (m MaterialDto) Identified() bool {
	return m.OwnMaterialNumber != "" || m.MaterialNumberCustomer != "" ||
		m.MaterialNumberSupplier != "" || m.MaterialNumberCx != ""
}

// StockDto is the base stock record exchanged between partners.
type StockDto struct {
	Type                        StockType       `json:"type"`
	Material                    MaterialDto     `json:"material"`
	Quantity                    decimal.Decimal `json:"quantity"`
	MeasurementUnit             ItemUnit        `json:"measurementUnit"`
	StockLocationBPNS           string          `json:"stockLocationBpns"`
	StockLocationBPNA           string          `json:"stockLocationBpna"`
	CustomerOrderNumber         *string         `json:"customerOrderNumber,omitempty"`
	CustomerOrderPositionNumber *string         `json:"customerOrderPositionNumber,omitempty"`
	SupplierOrderNumber         *string         `json:"supplierOrderNumber,omitempty"`
	Partner                     Partner         `json:"partner"`
	LastUpdatedOn               time.Time       `json:"lastUpdatedOn"`
	IsBlocked                   bool            `json:"isBlocked"`
}

// Validate checks quantity, unit, locations, partner and order references.
func (s *StockDto) Validate() error {
	if !s.Material.Identified() {
		return ErrEmptyMaterial
	}

	if s.Quantity.IsNegative() {
		return ErrNegativeQuantity
	}

	if !s.MeasurementUnit.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidItemUnit, s.MeasurementUnit)
	}

	if err := ValidateBPNS(s.StockLocationBPNS); err != nil {
		return err
	}

	if err := ValidateBPNA(s.StockLocationBPNA); err != nil {
		return err
	}

	if err := s.Partner.Validate(); err != nil {
		return err
	}

	if s.LastUpdatedOn.IsZero() {
		return ErrMissingLastUpdatedDate
	}

	if (s.CustomerOrderNumber == nil) != (s.CustomerOrderPositionNumber == nil) {
		return ErrIncompleteOrderRef
	}

	if s.SupplierOrderNumber != nil && s.CustomerOrderNumber == nil {
		return ErrSupplierOrderWithout
	}

	return nil
}

// HasOrderReference reports whether the stock is allocated to a customer order.
func (s *StockDto) HasOrderReference() bool {
	return s.CustomerOrderNumber != nil
}

// ReportedProductStock is product stock reported to us by a partner.
// Its type is always PRODUCT.
type ReportedProductStock struct {
	StockDto
}

// NewReportedProductStock creates a reported product stock without order references.
func NewReportedProductStock(
	material MaterialDto,
	quantity decimal.Decimal,
	unit ItemUnit,
	stockLocationBPNS string,
	stockLocationBPNA string,
	partner Partner,
	lastUpdatedOn time.Time,
	isBlocked bool,
) *ReportedProductStock {
	return &ReportedProductStock{
		StockDto: StockDto{
			Type:              StockTypeProduct,
			Material:          material,
			Quantity:          quantity,
			MeasurementUnit:   unit,
			StockLocationBPNS: stockLocationBPNS,
			StockLocationBPNA: stockLocationBPNA,
			Partner:           partner,
			LastUpdatedOn:     lastUpdatedOn.UTC(),
			IsBlocked:         isBlocked,
		},
	}
}

// NewReportedProductStockForOrder creates a reported product stock allocated
// to a customer order. supplierOrderNumber may be empty.
func NewReportedProductStockForOrder(
	material MaterialDto,
	quantity decimal.Decimal,
	unit ItemUnit,
	stockLocationBPNS string,
	stockLocationBPNA string,
	customerOrderNumber string,
	customerOrderPositionNumber string,
	supplierOrderNumber string,
	lastUpdatedOn time.Time,
	partner Partner,
	isBlocked bool,
) *ReportedProductStock {
	s := NewReportedProductStock(material, quantity, unit, stockLocationBPNS,
		stockLocationBPNA, partner, lastUpdatedOn, isBlocked)
	s.SetOrderReference(customerOrderNumber, customerOrderPositionNumber, supplierOrderNumber)
	return s
}

// Validate checks the base stock fields and the fixed PRODUCT type.
func (s *ReportedProductStock) Validate() error {
	if s.Type != StockTypeProduct {
		return fmt.Errorf("%w: %q", ErrUnexpectedStockType, s.Type)
	}
	return s.StockDto.Validate()
}

// UnmarshalJSON decodes a reported product stock. A payload that omits the
// type is read as PRODUCT.
func (s *ReportedProductStock) UnmarshalJSON(data []byte) error {
	var dto StockDto
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	if dto.Type == "" {
		dto.Type = StockTypeProduct
	}
	s.StockDto = dto
	return nil
}

// SetQuantity replaces the reported quantity and unit.
func (s *ReportedProductStock) SetQuantity(quantity decimal.Decimal, unit ItemUnit) {
	s.Quantity = quantity
	s.MeasurementUnit = unit
}

// SetBlocked marks the stock as blocked for use.
func (s *ReportedProductStock) SetBlocked(blocked bool) {
	s.IsBlocked = blocked
}

// SetLastUpdatedOn records when the partner last updated the stock.
func (s *ReportedProductStock) SetLastUpdatedOn(t time.Time) {
	s.LastUpdatedOn = t.UTC()
}

// SetOrderReference replaces the order references. Empty values clear the field.
func (s *ReportedProductStock) SetOrderReference(customerOrder, customerPosition, supplierOrder string) {
	s.CustomerOrderNumber = optional(customerOrder)
	s.CustomerOrderPositionNumber = optional(customerPosition)
	s.SupplierOrderNumber = optional(supplierOrder)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
