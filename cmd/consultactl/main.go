// Command consultactl administers consulta accounts, tokens and credit.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consulta/internal/config"
	"github.com/kiranshivaraju/consulta/internal/lookup"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/pkg/models"
	"github.com/urfave/cli/v3"
)

// storeOpener connects to the database named by url. The returned func
// releases the connection.
type storeOpener func(ctx context.Context, url string) (store.Store, func(), error)

func openPostgres(ctx context.Context, url string) (store.Store, func(), error) {
	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:             url,
		MaxOpenConns:    2,
		MaxIdleConns:    0,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

func main() {
	if err := newApp(openPostgres).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "consultactl:", err)
		os.Exit(1)
	}
}

func newApp(open storeOpener) *cli.Command {
	// withStore opens the database for one subcommand action.
	withStore := func(fn func(ctx context.Context, c *cli.Command, st store.Store) error) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			st, closeFn, err := open(ctx, c.String("database-url"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer closeFn()
			return fn(ctx, c, st)
		}
	}

	return &cli.Command{
		Name:  "consultactl",
		Usage: "Administer consulta accounts, API tokens and credit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Usage:    "Postgres connection URL",
				Required: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply pending schema migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: "migrations", Usage: "Migrations directory"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if err := store.RunMigrations(c.String("database-url"), c.String("dir")); err != nil {
						return err
					}
					fmt.Fprintln(c.Root().Writer, "migrations applied")
					return nil
				},
			},
			{
				Name:  "account",
				Usage: "Manage billing accounts",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create an account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true, Usage: "Display name"},
							&cli.StringFlag{Name: "domain", Usage: "Site domain billed to this account"},
							&cli.StringFlag{Name: "balance", Value: "0", Usage: "Opening balance, e.g. 25.00"},
						},
						Action: withStore(func(ctx context.Context, c *cli.Command, st store.Store) error {
							balance, err := models.ParseCredits(c.String("balance"))
							if err != nil {
								return err
							}
							return createAccount(ctx, st, c.Root().Writer, c.String("name"), c.String("domain"), balance)
						}),
					},
				},
			},
			{
				Name:  "token",
				Usage: "Manage API tokens",
				Commands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "Issue a token; the raw value is printed once",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true, Usage: "Token label"},
							&cli.StringFlag{Name: "account", Usage: "Account id the token falls back to"},
							&cli.DurationFlag{Name: "expires-in", Usage: "Lifetime, e.g. 720h; empty never expires"},
						},
						Action: withStore(func(ctx context.Context, c *cli.Command, st store.Store) error {
							var accountID *uuid.UUID
							if raw := c.String("account"); raw != "" {
								id, err := uuid.Parse(raw)
								if err != nil {
									return fmt.Errorf("invalid account id: %w", err)
								}
								accountID = &id
							}
							return issueToken(ctx, st, c.Root().Writer, c.String("name"), accountID, c.Duration("expires-in"))
						}),
					},
					{
						Name:  "revoke",
						Usage: "Deactivate a token",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Required: true, Usage: "Token id"},
						},
						Action: withStore(func(ctx context.Context, c *cli.Command, st store.Store) error {
							id, err := uuid.Parse(c.String("id"))
							if err != nil {
								return fmt.Errorf("invalid token id: %w", err)
							}
							if err := st.DeactivateAPIToken(ctx, id); err != nil {
								return fmt.Errorf("revoke token %s: %w", id, err)
							}
							fmt.Fprintf(c.Root().Writer, "token %s revoked\n", id)
							return nil
						}),
					},
				},
			},
			{
				Name:  "credit",
				Usage: "Adjust account credit",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Add credit to an account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "account", Required: true, Usage: "Account id"},
							&cli.StringFlag{Name: "amount", Required: true, Usage: "Amount, e.g. 10.50"},
						},
						Action: withStore(func(ctx context.Context, c *cli.Command, st store.Store) error {
							id, err := uuid.Parse(c.String("account"))
							if err != nil {
								return fmt.Errorf("invalid account id: %w", err)
							}
							amount, err := models.ParseCredits(c.String("amount"))
							if err != nil {
								return err
							}
							balance, err := st.CreditAccount(ctx, id, amount)
							if err != nil {
								return fmt.Errorf("credit account %s: %w", id, err)
							}
							fmt.Fprintf(c.Root().Writer, "account %s balance %s\n", id, balance)
							return nil
						}),
					},
				},
			},
			{
				Name:  "payment",
				Usage: "Manage PIX payments",
				Commands: []*cli.Command{
					{
						Name:  "register",
						Usage: "Register a pending charge so its webhook can credit the account",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "account", Required: true, Usage: "Account id"},
							&cli.StringFlag{Name: "txid", Required: true, Usage: "Provider transaction id"},
							&cli.StringFlag{Name: "amount", Required: true, Usage: "Amount, e.g. 50.00"},
						},
						Action: withStore(func(ctx context.Context, c *cli.Command, st store.Store) error {
							id, err := uuid.Parse(c.String("account"))
							if err != nil {
								return fmt.Errorf("invalid account id: %w", err)
							}
							amount, err := models.ParseCredits(c.String("amount"))
							if err != nil {
								return err
							}
							return registerPayment(ctx, st, c.Root().Writer, id, c.String("txid"), amount)
						}),
					},
				},
			},
		},
	}
}

func createAccount(ctx context.Context, st store.Store, w io.Writer, name, domain string, balance models.Credits) error {
	if balance < 0 {
		return fmt.Errorf("opening balance must not be negative, got %s", balance)
	}
	now := time.Now().UTC()
	a := &models.Account{ID: uuid.New(), Name: name, Balance: balance, CreatedAt: now, UpdatedAt: now}
	if domain != "" {
		d := lookup.ResolveOrigin(lookup.OriginInput{ParamDomain: domain})
		a.Domain = &d
	}
	if err := st.CreateAccount(ctx, a); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	fmt.Fprintf(w, "account %s created (domain %s, balance %s)\n", a.ID, displayDomain(a.Domain), a.Balance)
	return nil
}

func issueToken(ctx context.Context, st store.Store, w io.Writer, name string, accountID *uuid.UUID, expiresIn time.Duration) error {
	issued, err := lookup.GenerateToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t := &models.APIToken{
		ID:          uuid.New(),
		AccountID:   accountID,
		Name:        name,
		TokenHash:   issued.Hash,
		TokenPrefix: issued.Prefix,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if expiresIn > 0 {
		exp := now.Add(expiresIn)
		t.ExpiresAt = &exp
	}
	if err := st.CreateAPIToken(ctx, t); err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	fmt.Fprintf(w, "token %s issued\n%s\n", t.ID, issued.Raw)
	return nil
}

func registerPayment(ctx context.Context, st store.Store, w io.Writer, accountID uuid.UUID, txid string, amount models.Credits) error {
	if amount <= 0 {
		return fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	now := time.Now().UTC()
	p := &models.Payment{
		ID:         uuid.New(),
		AccountID:  accountID,
		ExternalID: txid,
		Amount:     amount,
		Status:     models.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.CreatePayment(ctx, p); err != nil {
		return fmt.Errorf("register payment %s: %w", txid, err)
	}
	fmt.Fprintf(w, "payment %s registered (txid %s, amount %s)\n", p.ID, txid, amount)
	return nil
}

func displayDomain(d *string) string {
	if d == nil {
		return "-"
	}
	return *d
}
