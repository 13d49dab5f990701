package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	dataDir    string
	appVersion string // set in Execute
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "troy",
		Short: "Spot prices for precious metals over a simple REST API",
		Long: `Troy serves live spot prices for gold, silver, platinum, and palladium
in USD per troy ounce.

Clients authenticate with API keys; accounts register, log in, and manage
their keys through a session API. Quotes come from an upstream market-data
source and are cached briefly so bursts of traffic cost one upstream call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./troy.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite account store (default: ~/.troy)")

	cobra.OnInitialize(initViper)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())

	return cmd
}

func initViper() {
	viper.SetEnvPrefix("TROY")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}
