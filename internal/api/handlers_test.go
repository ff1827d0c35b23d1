package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/puris-api/internal/api/middleware"
	"github.com/phrazzld/puris-api/internal/api/shared"
	"github.com/phrazzld/puris-api/internal/domain"
	"github.com/phrazzld/puris-api/internal/mocks"
	"github.com/phrazzld/puris-api/internal/service"
	"github.com/phrazzld/puris-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPartnerBPNL = "BPNL4444444444XX"

	requestPayload = `{
		"header": {"messageId": "msg-req-1", "context": "IRS_ITEM_STOCK_REQUEST"},
		"content": {"materials": [{"materialNumberCustomer": "MNR-7307-AU340474.002"}]}
	}`
)

func responsePayload(requestID string) string {
	return `{
		"header": {"messageId": "msg-resp-1", "requestId": "` + requestID + `"},
		"content": {"productStocks": [{
			"material": {"materialNumberCustomer": "MNR-7307-AU340474.002"},
			"quantity": 20.5,
			"measurementUnit": "unit:piece",
			"stockLocationBpns": "BPNS4444444444XX",
			"stockLocationBpna": "BPNA4444444444AA",
			"partner": {"bpnl": "BPNL4444444444XX"},
			"lastUpdatedOn": "2026-03-01T10:00:00Z"
		}]}
	}`
}

// newRouter mounts the handlers the way the server does, with the partner
// already authenticated when partner is non-empty.
func newRouter(partner string, requests service.RequestService, responses service.ResponseService) http.Handler {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.SetTraceID(req.Context())
			if partner != "" {
				ctx = middleware.WithPartner(ctx, domain.Partner{BPNL: partner})
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	rh := NewRequestHandler(requests, log)
	sh := NewResponseHandler(responses, log)
	r.Post("/api/v1/requests", rh.CreateRequest)
	r.Get("/api/v1/requests/{id}", rh.GetRequest)
	r.Post("/api/v1/responses", sh.ConsumeResponse)
	r.Get("/api/v1/reported-product-stocks", sh.ListReportedProductStocks)
	r.Get("/api/v1/api-methods", ListApiMethods)
	r.Get("/api/v1/api-methods/{purpose}", GetApiMethod)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRequestHandler_CreateRequest(t *testing.T) {
	t.Parallel()

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()

		var gotPartner string
		var gotPayload json.RawMessage
		requests := &mocks.MockRequestService{
			CreateFn: func(ctx context.Context, partnerBPNL string, payload json.RawMessage) (*domain.Request, error) {
				gotPartner, gotPayload = partnerBPNL, payload
				return domain.NewRequest(partnerBPNL, payload)
			},
		}

		rr := serve(newRouter(testPartnerBPNL, requests, &mocks.MockResponseService{}),
			http.MethodPost, "/api/v1/requests", requestPayload)

		require.Equal(t, http.StatusAccepted, rr.Code)
		var body RequestAcceptedResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "RECEIVED", body.State)
		_, err := uuid.Parse(body.RequestID)
		assert.NoError(t, err)

		assert.Equal(t, testPartnerBPNL, gotPartner)
		assert.JSONEq(t, requestPayload, string(gotPayload))
	})

	tests := []struct {
		name           string
		partner        string
		body           string
		serviceErr     error
		expectedStatus int
		expectedError  string
		expectCall     bool
	}{
		{"no partner", "", requestPayload, nil, http.StatusUnauthorized, "Invalid API key", false},
		{"empty body", testPartnerBPNL, "", nil, http.StatusBadRequest, "Invalid payload: is required", false},
		{"invalid payload", testPartnerBPNL, `{}`,
			domain.NewValidationError("header.messageId", "failed on the 'required' tag", domain.ErrValidation),
			http.StatusBadRequest, "Invalid header.messageId: required field", true},
		{"storage unavailable", testPartnerBPNL, requestPayload,
			&service.ServiceError{Operation: "create_request", Message: "failed to store request", Err: store.ErrStorage},
			http.StatusServiceUnavailable, "Service temporarily unavailable", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			requests := &mocks.MockRequestService{
				CreateFn: func(context.Context, string, json.RawMessage) (*domain.Request, error) {
					return nil, tc.serviceErr
				},
			}

			rr := serve(newRouter(tc.partner, requests, &mocks.MockResponseService{}),
				http.MethodPost, "/api/v1/requests", tc.body)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tc.expectedError, body.Error)
			assert.NotEmpty(t, body.TraceID)
			if tc.expectCall {
				assert.Equal(t, 1, requests.CreateCalls)
			} else {
				assert.Zero(t, requests.CreateCalls)
			}
		})
	}
}

func TestRequestHandler_GetRequest(t *testing.T) {
	t.Parallel()

	stored, err := domain.NewRequest(testPartnerBPNL, json.RawMessage(requestPayload))
	require.NoError(t, err)

	requests := &mocks.MockRequestService{
		GetForPartnerFn: func(ctx context.Context, id uuid.UUID, partnerBPNL string) (*domain.Request, error) {
			if id != stored.ID || partnerBPNL != stored.PartnerBPNL {
				return nil, service.ErrRequestNotFound
			}
			return stored, nil
		},
	}

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		h := newRouter(testPartnerBPNL, requests, &mocks.MockResponseService{})
		first := serve(h, http.MethodGet, "/api/v1/requests/"+stored.ID.String(), "")
		second := serve(h, http.MethodGet, "/api/v1/requests/"+stored.ID.String(), "")

		require.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())

		var body RequestResponse
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &body))
		assert.Equal(t, stored.ID.String(), body.ID)
		assert.Equal(t, "RECEIVED", body.State)
		assert.Equal(t, 1, body.Version)
		assert.Equal(t, "request", body.Message.Kind)
		assert.JSONEq(t, requestPayload, string(body.Message.Content))
	})

	tests := []struct {
		name           string
		partner        string
		path           string
		expectedStatus int
		expectedError  string
	}{
		{"other partner", "BPNL1234567890ZZ", "/api/v1/requests/" + stored.ID.String(), http.StatusNotFound, "Request not found"},
		{"unknown id", testPartnerBPNL, "/api/v1/requests/" + uuid.NewString(), http.StatusNotFound, "Request not found"},
		{"malformed id", testPartnerBPNL, "/api/v1/requests/R-999", http.StatusBadRequest, "Invalid id: has invalid format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rr := serve(newRouter(tc.partner, requests, &mocks.MockResponseService{}), http.MethodGet, tc.path, "")
			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedError, decodeError(t, rr).Error)
		})
	}
}

func TestResponseHandler_ConsumeResponse(t *testing.T) {
	t.Parallel()

	requestID := uuid.NewString()

	t.Run("consumed", func(t *testing.T) {
		t.Parallel()

		var got *service.ProductStockResponse
		var gotPartner string
		responses := &mocks.MockResponseService{
			ConsumeResponseFn: func(ctx context.Context, partnerBPNL string, resp *service.ProductStockResponse) error {
				got, gotPartner = resp, partnerBPNL
				return nil
			},
		}

		rr := serve(newRouter(testPartnerBPNL, &mocks.MockRequestService{}, responses),
			http.MethodPost, "/api/v1/responses", responsePayload(requestID))

		require.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
		assert.Equal(t, testPartnerBPNL, gotPartner)
		require.NotNil(t, got)
		assert.Equal(t, requestID, got.Header.RequestID)
		require.Len(t, got.Content.ProductStocks, 1)
		assert.True(t, decimal.RequireFromString("20.5").Equal(got.Content.ProductStocks[0].Quantity))
	})

	tests := []struct {
		name           string
		partner        string
		body           string
		serviceErr     error
		expectedStatus int
		expectedError  string
		expectCall     bool
	}{
		{"no partner", "", responsePayload(requestID), nil, http.StatusUnauthorized, "Invalid API key", false},
		{"malformed json", testPartnerBPNL, `{"header":`, nil, http.StatusBadRequest, "Invalid payload: is not valid JSON", false},
		{"missing request id", testPartnerBPNL, responsePayload(""), nil, http.StatusBadRequest, "Invalid header.requestId: is required", false},
		{"uncorrelated", testPartnerBPNL, responsePayload("R-999"), service.ErrCorrelation,
			http.StatusConflict, "Response does not correlate to a request in progress", true},
		{"invalid transition", testPartnerBPNL, responsePayload(requestID), service.ErrInvalidTransition,
			http.StatusInternalServerError, "Failed to consume response", true},
		{"storage unavailable", testPartnerBPNL, responsePayload(requestID),
			&service.ServiceError{Operation: "consume_response", Err: store.ErrStorage},
			http.StatusServiceUnavailable, "Service temporarily unavailable", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			responses := &mocks.MockResponseService{
				ConsumeResponseFn: func(context.Context, string, *service.ProductStockResponse) error {
					return tc.serviceErr
				},
			}

			rr := serve(newRouter(tc.partner, &mocks.MockRequestService{}, responses),
				http.MethodPost, "/api/v1/responses", tc.body)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedError, decodeError(t, rr).Error)
			if tc.expectCall {
				assert.Equal(t, 1, responses.ConsumeCalls)
			} else {
				assert.Zero(t, responses.ConsumeCalls)
			}
		})
	}
}

func TestResponseHandler_ListReportedProductStocks(t *testing.T) {
	t.Parallel()

	stock := domain.NewReportedProductStock(
		domain.MaterialDto{MaterialNumberCustomer: "MNR-7307-AU340474.002"},
		decimal.RequireFromString("20.5"),
		domain.ItemUnitPiece,
		"BPNS4444444444XX",
		"BPNA4444444444AA",
		domain.Partner{BPNL: testPartnerBPNL},
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		false,
	)

	var gotPartner string
	responses := &mocks.MockResponseService{
		ReportedProductStocksFn: func(ctx context.Context, partnerBPNL string) ([]*domain.ReportedProductStock, error) {
			gotPartner = partnerBPNL
			if partnerBPNL != testPartnerBPNL {
				return nil, nil
			}
			return []*domain.ReportedProductStock{stock}, nil
		},
	}

	rr := serve(newRouter(testPartnerBPNL, &mocks.MockRequestService{}, responses),
		http.MethodGet, "/api/v1/reported-product-stocks", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testPartnerBPNL, gotPartner)

	var body ReportedProductStocksResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.ProductStocks, 1)
	assert.Equal(t, domain.StockTypeProduct, body.ProductStocks[0].Type)
	assert.Equal(t, "BPNS4444444444XX", body.ProductStocks[0].StockLocationBPNS)

	rr = serve(newRouter("BPNL1234567890ZZ", &mocks.MockRequestService{}, responses),
		http.MethodGet, "/api/v1/reported-product-stocks", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"productStocks":[]}`, rr.Body.String())
}

func TestApiMethodHandlers(t *testing.T) {
	t.Parallel()

	h := newRouter("", &mocks.MockRequestService{}, &mocks.MockResponseService{})

	rr := serve(h, http.MethodGet, "/api/v1/api-methods", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"method": "REQUEST", "name": "Asset to request product-stock information", "purpose": "request"},
		{"method": "RESPONSE", "name": "Asset to receive product-stock information", "purpose": "response"}
	]`, rr.Body.String())

	rr = serve(h, http.MethodGet, "/api/v1/api-methods/response", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"method": "RESPONSE", "name": "Asset to receive product-stock information", "purpose": "response"}`, rr.Body.String())

	rr = serve(h, http.MethodGet, "/api/v1/api-methods/RESPONSE", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "API method not found", decodeError(t, rr).Error)
}

func TestHandlerConstructorsPanic(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	assert.Panics(t, func() { NewRequestHandler(nil, log) })
	assert.Panics(t, func() { NewRequestHandler(&mocks.MockRequestService{}, nil) })
	assert.Panics(t, func() { NewResponseHandler(nil, log) })
	assert.Panics(t, func() { NewResponseHandler(&mocks.MockResponseService{}, nil) })
}
