package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/troyapi/troy/internal/config"
	"github.com/troyapi/troy/internal/price"
	"github.com/troyapi/troy/internal/quote"
	"github.com/troyapi/troy/internal/server"
	"github.com/troyapi/troy/internal/service"
)

const banner = `
 _____ ___  _____   __
|_   _| _ \/ _ \ \ / /
  | | |   / (_) \ V /
  |_| |_|_\\___/ |_|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Troy API server",
		Long:  "Start the HTTP server that exposes the spot price, account, and API key endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dev {
		cfg.Logging.Level = "debug"
	}

	logger := newLogger(cfg.Logging)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	logger.Info("account store initialized", "path", resolveDataDir(cfg))

	jwtSecret, err := resolveJWTSecret(cfg, logger)
	if err != nil {
		st.Close()
		return err
	}
	authSvc := service.NewAuthService(st, jwtSecret, logger)

	window := config.Duration(cfg.Prices.FreshnessWindow, price.DefaultFreshnessWindow)
	source := quote.NewYahooWithTimeout(config.Duration(cfg.Prices.SourceTimeout, 0))
	cache := price.NewCache(source, cfg.Prices.Commodities, window, logger)
	logger.Info("price cache initialized",
		slog.Any("commodities", cache.Commodities()),
		slog.Duration("freshness_window", window))

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, server.DefaultConfig().ShutdownTimeout),
		CORSOrigins:     cfg.Server.CORS.Origins,
		PriceRateLimit:  cfg.Server.RateLimit,
		SessionTTL:      config.Duration(cfg.Auth.JWTExpiry, 0),
	}
	srv := server.New(srvCfg, st, authSvc, cache, logger)

	fmt.Printf("→ Troy %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:  http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Commodities: %v\n", cache.Commodities())
	fmt.Println()

	return srv.ListenAndServe()
}
