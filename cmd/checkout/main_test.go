package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/payment/gateway"
	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-p", "Premium", "--method", "cbe", "--reference", "FT12345678", "-q"})
	require.NoError(t, err)
	assert.Equal(t, "Premium", opts.Plan)
	assert.Equal(t, "cbe", opts.Method)
	assert.True(t, opts.QuickPay)

	opts, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "telebirr", opts.Method)

	_, err = parseFlags([]string{"--bogus"})
	assert.Error(t, err)
}

func TestMethodInput(t *testing.T) {
	in, err := methodInput(options{Method: "mpesa", Phone: "0911223344", Reference: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, domain.MpesaInput{Phone: "0911223344"}, in)

	in, err = methodInput(options{Method: "card", CardNumber: "4242424242424242", FirstName: "Abebe", LastName: "Kebede"})
	require.NoError(t, err)
	card, ok := in.(domain.CardInput)
	require.True(t, ok)
	assert.Equal(t, "Abebe Kebede", card.Holder)

	_, err = methodInput(options{Method: "paypal"})
	assert.True(t, payErrors.IsValidationError(err))
}

func TestResolvePlan(t *testing.T) {
	local := plans.Default()

	plan, err := resolvePlan("basic", []api.Plan{{Name: "Basic", Amount: 1200, Currency: "ETB"}}, local)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, plan.Amount)

	plan, err = resolvePlan("premium", nil, local)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, plan.Amount)

	_, err = resolvePlan("gold", nil, local)
	assert.True(t, payErrors.IsValidationError(err))

	_, err = resolvePlan("", nil, local)
	assert.True(t, payErrors.IsValidationError(err))
}

func TestPrintPlans_FallsBackToLocal(t *testing.T) {
	var buf bytes.Buffer
	printPlans(&buf, nil, plans.Default())
	assert.Contains(t, buf.String(), "Standard")
	assert.Contains(t, buf.String(), "2500.00 ETB")
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{out: &buf}

	p.Update(verification.State{Status: verification.StatusChecking, Remaining: 60 * time.Second})
	p.Update(verification.State{Status: verification.StatusChecking, Remaining: 59 * time.Second})
	p.Update(verification.State{Status: verification.StatusPending, Attempts: 1, Remaining: 55 * time.Second})
	p.Update(verification.State{Status: verification.StatusSuccess, Attempts: 2, Remaining: 50 * time.Second})

	out := buf.String()
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, out, "pending, attempt 1, 55s left")
	assert.Contains(t, out, "Payment confirmed.")
}

func TestExplain(t *testing.T) {
	assert.EqualError(t, explain(verification.ErrCancelled), "checkout cancelled")

	timeout := payErrors.NewTimeoutError("TX-1", time.Minute, verification.ReasonCountdown)
	assert.Contains(t, explain(timeout).Error(), "contact support")

	taken := payErrors.NewGatewayError("initialize", "an account already exists for this email", http.StatusConflict)
	assert.Contains(t, explain(taken).Error(), "sign in with --login")
	assert.ErrorIs(t, explain(taken), taken)

	other := errors.New("boom")
	assert.Equal(t, other, explain(other))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "******344", maskPhone("911223344"))
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		w.Write([]byte(`{"status":"success","token":"header.payload.sig","expiresAt":1900000000,"email":"abebe@example.com","planName":"Basic"}`))
	}))
	defer server.Close()

	client := gateway.NewClient(server.URL, time.Second)
	tokens := auth.NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	var buf bytes.Buffer

	err := login(context.Background(), client, tokens, options{Email: "abebe@example.com"}, &buf)
	assert.True(t, payErrors.IsValidationError(err))

	err = login(context.Background(), client, tokens, options{Email: "abebe@example.com", Password: "correct-horse"}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Signed in as abebe@example.com on the Basic plan")
	assert.FileExists(t, tokens.Path())
}
