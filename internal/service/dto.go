package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/puris-api/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MessageHeader is the envelope header of every exchanged message.
// RequestID is set on responses and names the request they answer.
type MessageHeader struct {
	MessageID    string    `json:"messageId" validate:"required,max=128"`
	RequestID    string    `json:"requestId,omitempty" validate:"max=128"`
	SenderBPN    string    `json:"senderBpn,omitempty"`
	ReceiverBPN  string    `json:"receiverBpn,omitempty"`
	Context      string    `json:"context,omitempty"`
	Version      string    `json:"version,omitempty"`
	SentDateTime time.Time `json:"sentDateTime,omitempty"`
}

// ProductStockRequestContent lists the materials a partner asks stock for.
type ProductStockRequestContent struct {
	Materials []domain.MaterialDto `json:"materials" validate:"required,min=1"`
}

// ProductStockRequest is the payload of the Request API.
type ProductStockRequest struct {
	Header  MessageHeader              `json:"header"`
	Content ProductStockRequestContent `json:"content"`
}

// ProductStockResponseContent carries the stocks a partner reports.
type ProductStockResponseContent struct {
	ProductStocks []*domain.ReportedProductStock `json:"productStocks" validate:"required,min=1,dive,required"`
}

// ProductStockResponse is the payload of the Response API.
type ProductStockResponse struct {
	Header  MessageHeader               `json:"header"`
	Content ProductStockResponseContent `json:"content"`

	raw json.RawMessage
}

// DecodeProductStockRequest parses and validates a Request API payload.
func DecodeProductStockRequest(data []byte) (*ProductStockRequest, error) {
	var req ProductStockRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, domain.NewValidationError("payload", "is not valid JSON", domain.ErrInvalidFormat)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the header and every requested material.
func (r *ProductStockRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}

	for i, m := range r.Content.Materials {
		if !m.Identified() {
			return domain.NewValidationError(
				fmt.Sprintf("content.materials[%d]", i),
				"must carry a material number",
				domain.ErrEmptyMaterial,
			)
		}
	}
	return nil
}

// DecodeProductStockResponse parses and validates a Response API payload.
// The raw bytes are kept as the content of the stored response message.
func DecodeProductStockResponse(data []byte) (*ProductStockResponse, error) {
	var resp ProductStockResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, domain.NewValidationError("payload", "is not valid JSON", domain.ErrInvalidFormat)
	}
	resp.raw = append(json.RawMessage(nil), data...)

	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate checks the correlation field, the header and every stock.
// At least one stock is required.
// The request id is only checked for presence: whether it names a known
// request is a correlation question, not a validation one.
func (r *ProductStockResponse) Validate() error {
	if strings.TrimSpace(r.Header.RequestID) == "" {
		return domain.NewValidationError("header.requestId", "is required", domain.ErrValidation)
	}

	if err := validateStruct(r); err != nil {
		return err
	}

	for i, stock := range r.Content.ProductStocks {
		if err := stock.Validate(); err != nil {
			return domain.NewValidationError(
				fmt.Sprintf("content.productStocks[%d]", i),
				err.Error(),
				err,
			)
		}
	}
	return nil
}

// content returns the payload stored as the response message.
func (r *ProductStockResponse) content() (json.RawMessage, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(r)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		return domain.NewValidationError(
			field,
			fmt.Sprintf("failed on the '%s' tag", fe.Tag()),
			domain.ErrValidation,
		)
	}

	return domain.NewValidationError("payload", "is invalid", err)
}
