package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Troy configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default troy.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

const defaultConfigFile = `# Troy Configuration

server:
  host: 0.0.0.0
  port: 8080
  shutdown_timeout: 30s
  rate_limit: 120           # price requests per minute per API key
  cors:
    origins:
      - "*"

# Authentication
auth:
  jwt_secret: ""            # Set via TROY_AUTH_JWT_SECRET env var
  jwt_expiry: 24h

# SQLite account store (holds accounts and API key hashes)
store:
  data_dir: data

# Quote source and cache
prices:
  freshness_window: 60s
  source_timeout: 5s
  commodities:              # commodity -> upstream futures symbol
    gold: GC=F
    silver: SI=F
    platinum: PL=F
    palladium: PA=F

# Logging
logging:
  level: info               # debug, info, warn, error
  format: text              # text or json
`

func runConfigInit(force bool) error {
	path := "troy.yaml"

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.WriteFile(path, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit the file to taste, then run 'troy serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigShow() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfgFile != "" {
		fmt.Printf("# config file: %s\n", cfgFile)
	} else if _, err := os.Stat("troy.yaml"); err == nil {
		fmt.Println("# config file: troy.yaml")
	} else {
		fmt.Println("# config file: (none found, using defaults)")
	}

	// jwt_secret is never printed
	if cfg.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = "<redacted>"
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
