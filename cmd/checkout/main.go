// checkout buys a subscription plan from the billing backend and registers the account
// bound to the payment.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sebuszqo/PlanCheckout/internal/auth"
	"github.com/sebuszqo/PlanCheckout/internal/config"
	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	"github.com/sebuszqo/PlanCheckout/internal/payment/checkout"
	"github.com/sebuszqo/PlanCheckout/internal/payment/domain"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
	"github.com/sebuszqo/PlanCheckout/internal/payment/gateway"
	"github.com/sebuszqo/PlanCheckout/internal/payment/initiator"
	"github.com/sebuszqo/PlanCheckout/internal/payment/registration"
	"github.com/sebuszqo/PlanCheckout/internal/payment/verification"
	"github.com/sebuszqo/PlanCheckout/internal/plans"
)

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
	fs.StringVarP(&opts.Plan, "plan", "p", "", "Plan to buy (see --list-plans)")
	fs.StringVarP(&opts.Method, "method", "m", "telebirr", "Payment method: telebirr, mpesa, cbe or card")
	fs.StringVar(&opts.Phone, "phone", "", "Mobile-money phone number")
	fs.StringVar(&opts.Reference, "reference", "", "CBE transfer reference")
	fs.StringVar(&opts.CardNumber, "card-number", "", "Card number")
	fs.StringVar(&opts.CardExpiry, "card-expiry", "", "Card expiry as MM/YY")
	fs.StringVar(&opts.CardCVV, "card-cvv", "", "Card security code")
	fs.StringVar(&opts.CardHolder, "card-holder", "", "Name on the card")
	fs.StringVarP(&opts.Email, "email", "e", "", "Account email")
	fs.StringVar(&opts.FirstName, "first-name", "", "First name")
	fs.StringVar(&opts.LastName, "last-name", "", "Last name")
	fs.StringVar(&opts.Password, "password", "", "Account password; one is generated and emailed when empty")
	fs.BoolVarP(&opts.QuickPay, "quick", "q", false, "Use the quick-pay verification cadence")
	fs.BoolVar(&opts.ListPlans, "list-plans", false, "List plans and exit")
	fs.BoolVar(&opts.Logout, "logout", false, "Forget the stored login and exit")
	fs.BoolVar(&opts.Login, "login", false, "Sign in with --email and --password instead of buying a plan")
	fs.BoolVar(&opts.Force, "force", false, "Check out for another account even when already logged in")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "checkout:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	tokenPath := cfg.TokenFile
	if tokenPath == "" {
		if tokenPath, err = auth.DefaultTokenPath(); err != nil {
			return err
		}
	}
	tokens := auth.NewTokenStore(tokenPath)

	if opts.Logout {
		return tokens.Clear()
	}

	local, err := plans.Load(cfg.PlansFile)
	if err != nil {
		return err
	}
	client := gateway.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)

	published, err := client.Plans(ctx)
	if err != nil {
		log.Printf("[Checkout] could not fetch plans from backend, using local catalogue: %v", err)
	}
	if opts.ListPlans {
		printPlans(out, published, local)
		return nil
	}
	if opts.Login {
		return login(ctx, client, tokens, opts, out)
	}

	if !opts.Force {
		if _, claims, err := tokens.Load(); err == nil {
			fmt.Fprintf(out, "Already subscribed as %s on the %s plan. Use --logout to sign out, or --force with a different --email to subscribe another account.\n", claims.Email, claims.Plan)
			return nil
		} else if !errors.Is(err, auth.ErrNoToken) {
			log.Printf("[Checkout] ignoring stored login: %v", err)
		}
	}

	plan, err := resolvePlan(opts.Plan, published, local)
	if err != nil {
		return err
	}
	input, err := methodInput(opts)
	if err != nil {
		return err
	}

	screen, quickPay := cfg.Verification()
	progress := &progressPrinter{out: out}
	flow := checkout.NewFlow(
		initiator.NewService(client, consoleOpener{out: out}, consoleNotifier{out: out}),
		client,
		registration.NewBinder(client, tokens),
		checkout.Config{
			Screen:   screen,
			QuickPay: quickPay,
			OnUpdate: progress.Update,
		},
	)

	done, err := flow.Run(ctx, checkout.Request{
		PlanName: plan.Name,
		Amount:   plan.Amount,
		Input:    input,
		Payer:    domain.Payer{Email: opts.Email, FirstName: opts.FirstName, LastName: opts.LastName},
		Password: opts.Password,
		QuickPay: opts.QuickPay,
	})
	if err != nil {
		return explain(err)
	}

	printCompletion(out, done)
	return nil
}

func login(ctx context.Context, client *gateway.Client, tokens *auth.TokenStore, opts options, out io.Writer) error {
	if opts.Email == "" || opts.Password == "" {
		return payErrors.NewValidationError("login", "--email and --password are required")
	}
	resp, err := client.Login(ctx, api.LoginRequest{Email: opts.Email, Password: opts.Password})
	if err != nil {
		return err
	}
	if err := tokens.Save(resp.Token); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s on the %s plan until %s.\n", resp.Email, resp.PlanName, time.Unix(resp.ExpiresAt, 0).Format(time.RFC1123))
	return nil
}

func printCompletion(out io.Writer, done *checkout.Completion) {
	if done.Result.IsDemo() {
		fmt.Fprintln(out, "Demo mode: the payment was not confirmed by the backend.")
	}
	account := done.Account
	fmt.Fprintf(out, "Subscribed %s to the %s plan (transaction %s).\n", account.Email, account.PlanName, account.TxRef)
	if done.Result.Data.ReceiptNumber != "" {
		fmt.Fprintf(out, "Receipt: %s\n", done.Result.Data.ReceiptNumber)
	}
	switch {
	case account.Local:
		fmt.Fprintln(out, "The account exists on this device only.")
	case account.Token != "":
		fmt.Fprintf(out, "Signed in until %s.\n", account.ExpiresAt.Format(time.RFC1123))
	}
}

// explain turns flow errors into what the payer should do next.
func explain(err error) error {
	var gwErr *payErrors.GatewayError
	switch {
	case errors.As(err, &gwErr) && gwErr.Op == "initialize" && gwErr.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w; sign in with --login instead of paying again", err)
	case payErrors.IsValidationError(err):
		return fmt.Errorf("check your details: %w", err)
	case payErrors.IsTimeoutError(err):
		return fmt.Errorf("%w; if you were charged, contact support with the transaction reference", err)
	case errors.Is(err, verification.ErrCancelled):
		return errors.New("checkout cancelled")
	case errors.Is(err, registration.ErrAlreadyBound), errors.Is(err, registration.ErrInProgress):
		return fmt.Errorf("this payment is already linked to an account: %w", err)
	default:
		return err
	}
}
