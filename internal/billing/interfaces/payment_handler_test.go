package interfaces

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/PlanCheckout/internal/billing/application"
	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

func newMux(service PaymentServiceInterface) *http.ServeMux {
	handler := NewPaymentHandler(service, respondJSON, respondError)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/payments/initialize", handler.InitializePayment)
	mux.HandleFunc("GET /api/payments/verify/{txRef}", handler.VerifyPayment)
	mux.HandleFunc("POST /api/payments/verify-registration", handler.VerifyRegistration)
	mux.HandleFunc("GET /api/plans", handler.GetPlans)
	return mux
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestNewPaymentHandler_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewPaymentHandler(nil, respondJSON, respondError) })
	assert.Panics(t, func() { NewPaymentHandler(&MockPaymentService{}, nil, respondError) })
}

func TestInitializePayment_Success(t *testing.T) {
	service := &MockPaymentService{InitializeResult: &application.InitializeResult{TxRef: "TX-1", CheckoutURL: "https://pay.test/TX-1"}}
	body, err := json.Marshal(api.InitializeRequest{
		Amount:        1000,
		Email:         "abebe@example.com",
		FirstName:     "Abebe",
		LastName:      "Kebede",
		Type:          api.TypeSubscription,
		PaymentMethod: "card",
		PlanName:      "Basic",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize", bytes.NewReader(body))
	w := httptest.NewRecorder()
	newMux(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.InitializeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, api.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "TX-1", resp.Data.TxRef)
	assert.Equal(t, "https://pay.test/TX-1", resp.Data.CheckoutURL)
	assert.Equal(t, "card", service.LastInitialize.PaymentMethod)
	assert.Equal(t, "Basic", service.LastInitialize.PlanName)
}

func TestInitializePayment_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize", bytes.NewBufferString("invalid body"))
	w := httptest.NewRecorder()
	newMux(&MockPaymentService{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Invalid request body", body["message"])
	assert.Equal(t, float64(http.StatusBadRequest), body["code"])
}

func TestInitializePayment_ValidationErrors(t *testing.T) {
	var ve payErrors.ValidationErrors
	ve.Add(payErrors.NewValidationError("amount", "must be positive"))
	ve.Add(payErrors.NewValidationError("email", "is required"))
	service := &MockPaymentService{InitializeErr: ve.ErrOrNil()}

	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	newMux(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{"amount: must be positive", "email: is required"}, body["errors"])
}

func TestInitializePayment_AlreadySubscribed(t *testing.T) {
	service := &MockPaymentService{InitializeErr: application.ErrAlreadySubscribed}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	newMux(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, application.ErrAlreadySubscribed.Error(), decode(t, w)["message"])
}

func TestInitializePayment_ProviderFailure(t *testing.T) {
	service := &MockPaymentService{InitializeErr: errors.New("provider down")}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	newMux(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestVerifyPayment(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		service := &MockPaymentService{Payment: &domain.Payment{TxRef: "TX-1", Amount: 2500, Status: domain.StatusPending}}
		w := httptest.NewRecorder()
		newMux(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/verify/TX-1", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp api.VerifyResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, api.StatusSuccess, resp.Status)
		require.NotNil(t, resp.Data)
		assert.Equal(t, api.PaymentStatusPending, resp.Data.Status)
		require.NotNil(t, resp.Data.Amount)
		assert.Equal(t, 2500.0, *resp.Data.Amount)
	})

	t.Run("success carries receipt", func(t *testing.T) {
		service := &MockPaymentService{Payment: &domain.Payment{TxRef: "TX-1", Amount: 2500, Status: domain.StatusSuccess, ReceiptNumber: "RCPT", ResultDesc: "ok"}}
		w := httptest.NewRecorder()
		newMux(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/verify/TX-1", nil))

		var resp api.VerifyResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, api.PaymentStatusSuccess, resp.Data.Status)
		assert.Equal(t, "RCPT", resp.Data.MpesaReceiptNumber)
		assert.Equal(t, "ok", resp.Data.ResultDesc)
	})

	t.Run("unknown", func(t *testing.T) {
		service := &MockPaymentService{VerifyErr: domain.ErrPaymentNotFound}
		w := httptest.NewRecorder()
		newMux(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/payments/verify/TX-404", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "error", decode(t, w)["status"])
	})
}

func TestVerifyRegistration_Success(t *testing.T) {
	expires := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	service := &MockPaymentService{RegistrationResult: &application.RegistrationResult{
		User:      &user.User{ID: "u-1", Email: "abebe@example.com", PlanName: "Standard", TxRef: "TX-1"},
		Token:     "jwt",
		ExpiresAt: expires,
	}}
	body := `{"txRef":"TX-1","email":"abebe@example.com","planName":"Standard","password":"correct-horse"}`

	w := httptest.NewRecorder()
	newMux(service).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/payments/verify-registration", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp api.RegistrationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, api.StatusSuccess, resp.Status)
	assert.Equal(t, "u-1", resp.UserID)
	assert.Equal(t, "jwt", resp.Token)
	assert.Equal(t, expires.Unix(), resp.ExpiresAt)
	assert.Equal(t, "correct-horse", service.LastRegistration.Password)
}

func TestVerifyRegistration_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{payErrors.NewValidationError("txRef", "is required"), http.StatusBadRequest},
		{domain.ErrPaymentNotFound, http.StatusNotFound},
		{application.ErrPaymentNotCompleted, http.StatusPaymentRequired},
		{application.ErrEmailMismatch, http.StatusBadRequest},
		{application.ErrPlanMismatch, http.StatusBadRequest},
		{domain.ErrAlreadyConsumed, http.StatusConflict},
		{user.ErrEmailAlreadyExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			service := &MockPaymentService{RegistrationErr: tt.err}
			w := httptest.NewRecorder()
			newMux(service).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/payments/verify-registration", bytes.NewBufferString(`{}`)))

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "error", decode(t, w)["status"])
		})
	}
}

func TestGetPlans(t *testing.T) {
	w := httptest.NewRecorder()
	newMux(&MockPaymentService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/plans", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status string     `json:"status"`
		Plans  []api.Plan `json:"plans"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Plans, 3)
	assert.Equal(t, "Basic", resp.Plans[0].Name)
	assert.Equal(t, "ETB", resp.Plans[0].Currency)
}
