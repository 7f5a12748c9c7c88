// Package api holds the JSON contract shared by the checkout client and the billing backend.
package api

const (
	StatusSuccess = "success"
	StatusError   = "error"

	PaymentStatusSuccess = "success"
	PaymentStatusPending = "pending"
	PaymentStatusFailed  = "failed"

	TypeSubscription     = "subscription"
	CategorySubscription = "subscription"

	InitializePath         = "/payments/initialize"
	VerifyPathPrefix       = "/payments/verify/"
	VerifyRegistrationPath = "/payments/verify-registration"
	PlansPath              = "/plans"
	LoginPath              = "/auth/login"
)

type InitializeRequest struct {
	Amount        float64 `json:"amount"`
	Email         string  `json:"email"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Type          string  `json:"type"`
	PaymentMethod string  `json:"paymentMethod"`
	PhoneNumber   string  `json:"phoneNumber,omitempty"`
	Reference     string  `json:"reference,omitempty"`
	PlanName      string  `json:"planName,omitempty"`
}

type InitializeData struct {
	TxRef       string `json:"tx_ref"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

type InitializeResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    *InitializeData `json:"data,omitempty"`
}

type VerifyData struct {
	Status             string   `json:"status"`
	Amount             *float64 `json:"amount,omitempty"`
	MpesaReceiptNumber string   `json:"mpesaReceiptNumber,omitempty"`
	ResultDesc         string   `json:"resultDesc,omitempty"`
}

type VerifyResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    *VerifyData `json:"data,omitempty"`
}

type RegistrationRequest struct {
	TxRef     string `json:"txRef"`
	Email     string `json:"email"`
	PlanName  string `json:"planName"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type RegistrationResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	PlanName  string `json:"planName,omitempty"`
	TxRef     string `json:"txRef,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

type Plan struct {
	Name     string   `json:"name"`
	Amount   float64  `json:"amount"`
	Currency string   `json:"currency"`
	Features []string `json:"features,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	PlanName  string `json:"planName,omitempty"`
}
