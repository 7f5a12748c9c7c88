package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/sebuszqo/PlanCheckout/internal/billing/application"
	"github.com/sebuszqo/PlanCheckout/internal/billing/domain"
	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

type PaymentServiceInterface interface {
	Initialize(ctx context.Context, in application.InitializeInput) (*application.InitializeResult, error)
	Verify(ctx context.Context, txRef string) (*domain.Payment, error)
	VerifyRegistration(ctx context.Context, in application.RegistrationInput) (*application.RegistrationResult, error)
	Plans() []plans.Plan
	Currency() string
}

type PaymentHandler struct {
	service      PaymentServiceInterface
	respondJSON  func(w http.ResponseWriter, status int, payload interface{})
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string)
}

func NewPaymentHandler(
	service PaymentServiceInterface,
	respondJSON func(w http.ResponseWriter, status int, payload interface{}),
	respondError func(w http.ResponseWriter, status int, message string, errors ...[]string),
) *PaymentHandler {
	if service == nil || respondJSON == nil || respondError == nil {
		panic("Service and response functions must not be nil")
	}
	return &PaymentHandler{
		service:      service,
		respondJSON:  respondJSON,
		respondError: respondError,
	}
}

func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var req api.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.Initialize(r.Context(), application.InitializeInput{
		Amount:        req.Amount,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Type:          req.Type,
		PaymentMethod: req.PaymentMethod,
		PhoneNumber:   req.PhoneNumber,
		Reference:     req.Reference,
		PlanName:      req.PlanName,
	})
	if err != nil {
		if payErrors.IsValidationError(err) {
			h.respondError(w, http.StatusBadRequest, "Invalid payment request", validationMessages(err))
			return
		}
		if errors.Is(err, application.ErrAlreadySubscribed) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("[Billing] initialize failed: %v", err)
		h.respondError(w, http.StatusBadGateway, "Failed to initialize payment")
		return
	}

	h.respondJSON(w, http.StatusOK, api.InitializeResponse{
		Status:  api.StatusSuccess,
		Message: "Payment initialized successfully.",
		Data:    &api.InitializeData{TxRef: res.TxRef, CheckoutURL: res.CheckoutURL},
	})
}

func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	txRef := strings.TrimSpace(r.PathValue("txRef"))
	if txRef == "" {
		h.respondError(w, http.StatusBadRequest, "Transaction reference is required")
		return
	}

	payment, err := h.service.Verify(r.Context(), txRef)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			h.respondError(w, http.StatusNotFound, "Payment not found")
			return
		}
		log.Printf("[Billing] verify %s failed: %v", txRef, err)
		h.respondError(w, http.StatusInternalServerError, "Failed to verify payment")
		return
	}

	amount := payment.Amount
	h.respondJSON(w, http.StatusOK, api.VerifyResponse{
		Status: api.StatusSuccess,
		Data: &api.VerifyData{
			Status:             string(payment.Status),
			Amount:             &amount,
			MpesaReceiptNumber: payment.ReceiptNumber,
			ResultDesc:         payment.ResultDesc,
		},
	})
}

func (h *PaymentHandler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req api.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.VerifyRegistration(r.Context(), application.RegistrationInput{
		TxRef:     req.TxRef,
		Email:     req.Email,
		PlanName:  req.PlanName,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondRegistrationError(w, err)
		return
	}

	resp := api.RegistrationResponse{
		Status:   api.StatusSuccess,
		Message:  "Subscription activated.",
		UserID:   res.User.ID,
		Email:    res.User.Email,
		PlanName: res.User.PlanName,
		TxRef:    res.User.TxRef,
		Token:    res.Token,
	}
	if !res.ExpiresAt.IsZero() {
		resp.ExpiresAt = res.ExpiresAt.Unix()
	}
	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) respondRegistrationError(w http.ResponseWriter, err error) {
	switch {
	case payErrors.IsValidationError(err):
		h.respondError(w, http.StatusBadRequest, "Invalid registration request", validationMessages(err))
	case errors.Is(err, domain.ErrPaymentNotFound):
		h.respondError(w, http.StatusNotFound, "Payment not found")
	case errors.Is(err, application.ErrPaymentNotCompleted):
		h.respondError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, application.ErrEmailMismatch),
		errors.Is(err, application.ErrPlanMismatch),
		errors.Is(err, application.ErrAmountMismatch),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrPasswordTooShort):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyConsumed),
		errors.Is(err, user.ErrTxRefAlreadyUsed),
		errors.Is(err, user.ErrEmailAlreadyExists):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("[Billing] registration failed: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to complete registration")
	}
}

func (h *PaymentHandler) GetPlans(w http.ResponseWriter, _ *http.Request) {
	catalogue := h.service.Plans()
	out := make([]api.Plan, len(catalogue))
	for i, p := range catalogue {
		out[i] = api.Plan{Name: p.Name, Amount: p.Amount, Currency: h.service.Currency(), Features: p.Features}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": api.StatusSuccess,
		"plans":  out,
	})
}

func validationMessages(err error) []string {
	var ve *payErrors.ValidationErrors
	if errors.As(err, &ve) {
		messages := make([]string, len(ve.Errors))
		for i, e := range ve.Errors {
			messages[i] = e.Error()
		}
		return messages
	}
	return []string{err.Error()}
}
