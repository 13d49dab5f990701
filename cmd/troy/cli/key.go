package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/troyapi/troy/internal/service"
	"github.com/troyapi/troy/internal/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys directly against the local store. Keys belong to an account.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// cliAuthService opens the store and wraps it in an auth service for key
// operations. The JWT secret is irrelevant here; no tokens are issued.
func cliAuthService() (*store.Store, *service.AuthService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return st, service.NewAuthService(st, "cli-unused", quiet), nil
}

// accountID resolves a username to its account id.
func accountID(ctx context.Context, st *store.Store, username string) (int64, error) {
	acct, err := st.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("account %q not found", username)
		}
		return 0, fmt.Errorf("look up account: %w", err)
	}
	return acct.ID, nil
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		username string
		label    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key for an account",
		Long:  "Generate a new API key. The raw key is shown once and cannot be retrieved again.",
		Example: `  troy key create --username alice --label "CI pipeline"
  troy key create --username alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(username, label)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account that owns the key (required)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runKeyCreate(username, label string) error {
	st, authSvc, err := cliAuthService()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	id, err := accountID(ctx, st, username)
	if err != nil {
		return err
	}

	rawKey, key, err := authSvc.CreateKey(ctx, id, label)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:     %s\n", rawKey)
	fmt.Printf("  ID:      %d\n", key.ID)
	fmt.Printf("  Account: %s\n", username)
	if label != "" {
		fmt.Printf("  Label:   %s\n", label)
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		username   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List an account's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(username, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account whose keys to list (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runKeyList(username string, jsonOutput bool) error {
	st, _, err := cliAuthService()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	id, err := accountID(ctx, st, username)
	if err != nil {
		return err
	}

	keys, err := st.ListKeys(ctx, id)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		ID     int64  `json:"id"`
		Prefix string `json:"prefix"`
		Label  string `json:"label"`
		Active bool   `json:"active"`
		Uses   int64  `json:"uses"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		rows[i] = keyRow{
			ID:     k.ID,
			Prefix: k.KeyPrefix,
			Label:  k.Label,
			Active: k.IsActive,
			Uses:   k.UsageCount,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Printf("No API keys for %q. Use 'troy key create' to create one.\n", username)
		return nil
	}

	fmt.Printf("%-6s %-16s %-24s %-8s %-8s\n", "ID", "PREFIX", "LABEL", "ACTIVE", "USES")
	fmt.Printf("%-6s %-16s %-24s %-8s %-8s\n", "--", "------", "-----", "------", "----")
	for _, k := range rows {
		active := "yes"
		if !k.Active {
			active = "no"
		}
		fmt.Printf("%-6d %-16s %-24s %-8s %-8d\n", k.ID, k.Prefix, k.Label, active, k.Uses)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key by its id",
		Long:  "Delete an API key, preventing any further authenticated requests using that key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(username, args[0])
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account that owns the key (required)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runKeyRevoke(username, idArg string) error {
	keyID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid key id %q", idArg)
	}

	st, _, err := cliAuthService()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	id, err := accountID(ctx, st, username)
	if err != nil {
		return err
	}

	if err := st.DeleteKey(ctx, id, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no API key with id %d for %q", keyID, username)
		}
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key %d\n", keyID)
	return nil
}
