package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/troyapi/troy/internal/service"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
		Long:  "Create accounts directly against the local store, without going through the HTTP API.",
	}

	cmd.AddCommand(newAccountCreateCmd())

	return cmd
}

// ---------- account create ----------

func newAccountCreateCmd() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new account",
		Example: `  troy account create --username alice --password secret12
  troy account create --username alice  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountCreate(username, password)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runAccountCreate(username, password string) error {
	if password == "" {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(st, "cli-unused", quiet)

	acct, err := authSvc.Register(context.Background(), username, password)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateUsername) {
			return fmt.Errorf("username %q is already taken", username)
		}
		return fmt.Errorf("create account: %w", err)
	}

	fmt.Printf("Created account %q (id %d)\n", acct.Username, acct.ID)
	fmt.Println("Log in via POST /api/v1/session, or mint a key with 'troy key create'.")
	return nil
}

// promptPassword reads and confirms a password without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}
