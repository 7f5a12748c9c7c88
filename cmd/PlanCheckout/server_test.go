package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	"github.com/sebuszqo/PlanCheckout/internal/billing/application"
	"github.com/sebuszqo/PlanCheckout/internal/billing/infrastructure"
	billing "github.com/sebuszqo/PlanCheckout/internal/billing/interfaces"
	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/checkout"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/payment/gateway"
	"github.com/sebuszqo/PlanCheckout/internal/payment/initiator"
	"github.com/sebuszqo/PlanCheckout/internal/payment/registration"
	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
	"github.com/sebuszqo/PlanCheckout/internal/user"
)

type recordingOpener struct {
	mu   sync.Mutex
	URLs []string
}

func (o *recordingOpener) OpenCheckout(ctx context.Context, intent domain.PaymentIntent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.URLs = append(o.URLs, intent.CheckoutURL)
	return nil
}

type testEnv struct {
	ts         *httptest.Server
	client     *gateway.Client
	jwtManager auth.JWTManagerInterface
	tokens     *auth.TokenStore
	opener     *recordingOpener
}

func newTestEnv(t *testing.T, settleAfter time.Duration) *testEnv {
	t.Helper()

	jwtManager, err := auth.NewJWTManager("integration-secret", time.Hour)
	require.NoError(t, err)

	userService := user.NewUserService(user.NewMemoryRepository(), nil)
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	provider := infrastructure.NewSandboxProvider(settleAfter, ts.URL+"/checkout")
	paymentService := application.NewPaymentService(infrastructure.NewMemoryPaymentRepository(nil), provider, plans.Default(), userService, jwtManager)
	server := NewServer(billing.NewPaymentHandler(paymentService, respondJSON, respondError), user.NewHandler(userService), auth.NewHandler(auth.NewAuthService(userService, jwtManager)), userService, jwtManager)
	server.RegisterRoutes()
	mux.Handle("/", server.Handler())

	return &testEnv{
		ts:         ts,
		client:     gateway.NewClient(ts.URL+"/api", 5*time.Second),
		jwtManager: jwtManager,
		tokens:     auth.NewTokenStore(filepath.Join(t.TempDir(), "auth.json")),
		opener:     &recordingOpener{},
	}
}

func fastConfig() verification.Config {
	return verification.Config{
		Budget:       3 * time.Second,
		TickInterval: 100 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
	}
}

func (e *testEnv) flow() *checkout.Flow {
	return checkout.NewFlow(
		initiator.NewService(e.client, e.opener, nil),
		e.client,
		registration.NewBinder(e.client, e.tokens),
		checkout.Config{Screen: fastConfig(), QuickPay: fastConfig(), SettleDelay: 10 * time.Millisecond},
	)
}

func payer() domain.Payer {
	return domain.Payer{Email: "abebe@example.com", FirstName: "Abebe", LastName: "Kebede"}
}

func TestCheckout_TelebirrEndToEnd(t *testing.T) {
	env := newTestEnv(t, 300*time.Millisecond)

	var mu sync.Mutex
	var statuses []verification.Status
	f := checkout.NewFlow(
		initiator.NewService(env.client, env.opener, nil),
		env.client,
		registration.NewBinder(env.client, env.tokens),
		checkout.Config{
			Screen:      fastConfig(),
			SettleDelay: 10 * time.Millisecond,
			OnUpdate: func(s verification.State) {
				mu.Lock()
				statuses = append(statuses, s.Status)
				mu.Unlock()
			},
		},
	)

	done, err := f.Run(context.Background(), checkout.Request{
		PlanName: "Standard",
		Amount:   2500,
		Input:    domain.TelebirrInput{Phone: "0911223344"},
		Payer:    payer(),
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.NotNil(t, done.Account)
	assert.False(t, done.Account.Local)
	assert.Equal(t, "Standard", done.Account.PlanName)
	assert.NotEmpty(t, done.Account.UserID)
	assert.Equal(t, verification.OriginBackend, done.Result.Origin)
	assert.NotEmpty(t, done.Result.Data.ReceiptNumber)

	mu.Lock()
	assert.Contains(t, statuses, verification.StatusPending)
	assert.Equal(t, verification.StatusSuccess, statuses[len(statuses)-1])
	mu.Unlock()

	token, claims, err := env.tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, done.Account.UserID, claims.UserID)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/account", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The same txRef cannot back a second account.
	_, err = env.client.VerifyRegistration(context.Background(), registrationRequest(done))
	require.Error(t, err)
	var gwErr *payErrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusConflict, gwErr.StatusCode)

	// A cleared token can be replaced by logging in with the checkout password.
	login, err := env.client.Login(context.Background(), api.LoginRequest{Email: payer().Email, Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, done.Account.UserID, login.UserID)
	assert.Equal(t, "Standard", login.PlanName)
	require.NoError(t, env.tokens.Save(login.Token))

	_, err = env.client.Login(context.Background(), api.LoginRequest{Email: payer().Email, Password: "wrong-password"})
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
}

func TestCheckout_DeclinedPhoneFails(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)

	done, err := env.flow().Run(context.Background(), checkout.Request{
		PlanName: "Basic",
		Amount:   1000,
		Input:    domain.MpesaInput{Phone: "+251900000000"},
		Payer:    payer(),
	})
	require.Error(t, err)
	assert.True(t, payErrors.IsGatewayError(err))
	require.NotNil(t, done)
	assert.Nil(t, done.Account)
}

func TestCheckout_CardOpensSandboxPage(t *testing.T) {
	env := newTestEnv(t, 200*time.Millisecond)

	done, err := env.flow().Run(context.Background(), checkout.Request{
		PlanName: "Premium",
		Amount:   5000,
		Input:    domain.CardInput{Number: "4242 4242 4242 4242", Expiry: "12/99", CVV: "123", Holder: "Abebe Kebede"},
		Payer:    payer(),
		QuickPay: true,
	})
	require.NoError(t, err)
	require.Len(t, env.opener.URLs, 1)
	assert.Equal(t, env.ts.URL+"/checkout/"+done.Intent.TxRef, env.opener.URLs[0])

	resp, err := http.Get(env.opener.URLs[0])
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestCheckout_BackendRejectsWrongAmount(t *testing.T) {
	env := newTestEnv(t, time.Second)

	_, err := env.flow().Run(context.Background(), checkout.Request{
		PlanName: "Premium",
		Amount:   10,
		Input:    domain.TelebirrInput{Phone: "911223344"},
		Payer:    payer(),
	})
	require.Error(t, err)
	var gwErr *payErrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
}

func TestCheckout_ExistingSubscriberIsNotChargedAgain(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)
	req := checkout.Request{
		PlanName: "Standard",
		Amount:   2500,
		Input:    domain.TelebirrInput{Phone: "0911223344"},
		Payer:    payer(),
		Password: "correct-horse",
	}
	_, err := env.flow().Run(context.Background(), req)
	require.NoError(t, err)

	req.PlanName = "Premium"
	req.Amount = 5000
	done, err := env.flow().Run(context.Background(), req)
	assert.Nil(t, done, "refused before a txRef is issued")
	var gwErr *payErrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusConflict, gwErr.StatusCode)
}

func TestCheckout_ShortPasswordFailsBeforeInitialize(t *testing.T) {
	env := newTestEnv(t, 100*time.Millisecond)

	done, err := env.flow().Run(context.Background(), checkout.Request{
		PlanName: "Standard",
		Amount:   2500,
		Input:    domain.CardInput{Number: "4242424242424242", Expiry: "12/99", CVV: "123", Holder: "Abebe Kebede"},
		Payer:    payer(),
		Password: "short",
	})
	assert.Nil(t, done)
	assert.True(t, payErrors.IsValidationError(err))
	assert.Empty(t, env.opener.URLs)
}

func TestServer_ReadyPlansAndNotFound(t *testing.T) {
	env := newTestEnv(t, time.Second)

	resp, err := http.Get(env.ts.URL + "/api/ready")
	require.NoError(t, err)
	var ready map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, "ready", ready["status"])

	catalogue, err := env.client.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, catalogue, 3)
	assert.Equal(t, "ETB", catalogue[0].Currency)

	resp, err = http.Get(env.ts.URL + "/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(env.ts.URL + "/api/account")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func registrationRequest(done *checkout.Completion) api.RegistrationRequest {
	return api.RegistrationRequest{
		TxRef:    done.Intent.TxRef,
		Email:    done.Account.Email,
		PlanName: done.Account.PlanName,
	}
}
