package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/config/file"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/jupiter"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/metrics"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/swap"
)

const (
	newRelicMetadataKey = "newrelic"

	newRelicShutdownTimeout = 5 * time.Second
)

func main() {
	// A missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "cpi-swap",
		Usage: "Swap tokens held by the CPI swap program vault through Jupiter",
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Value:   string(solana.EnvironmentProd),
				Usage:   "Solana JSON-RPC endpoint",
				EnvVars: []string{"RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "api-base-url",
				Value:   jupiter.DefaultApiBaseUrl,
				Usage:   "Jupiter swap API base URL",
				EnvVars: []string{"API_BASE_URL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Optional YAML, TOML or JSON file with a cpi_swap section",
				EnvVars: []string{"CPI_SWAP_CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			quoteCommand(),
			swapCommand(),
			vaultCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.StandardLogger().WithError(err).Fatal("command failed")
	}
}

func setup(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	licenseKey := os.Getenv("NEW_RELIC_LICENSE_KEY")
	if len(licenseKey) == 0 {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(envOrDefault("NEW_RELIC_APP_NAME", "cpi-swap")),
		newrelic.ConfigLicense(licenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logrus.StandardLogger().WithError(err).Warn("failure initializing new relic, metrics disabled")
		return nil
	}

	logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(nrApp, &logrus.TextFormatter{}))
	c.App.Metadata[newRelicMetadataKey] = nrApp
	return nil
}

func teardown(c *cli.Context) error {
	if nrApp, ok := c.App.Metadata[newRelicMetadataKey].(*newrelic.Application); ok {
		nrApp.Shutdown(newRelicShutdownTimeout)
	}
	return nil
}

// commandContext returns the command's context, traced as a New Relic
// transaction when metrics are enabled.
func commandContext(c *cli.Context) (context.Context, func()) {
	ctx := c.Context
	if nrApp, ok := c.App.Metadata[newRelicMetadataKey].(*newrelic.Application); ok {
		ctx = metrics.NewContext(ctx, nrApp)
	}
	return metrics.StartTransaction(ctx, "cpi-swap "+c.Command.Name)
}

func swapConfigProvider(c *cli.Context) (swap.ConfigProvider, error) {
	path := c.String("config")
	if len(path) == 0 {
		return swap.WithEnvConfigs(), nil
	}

	provider, err := file.NewProvider(path)
	if err != nil {
		return nil, err
	}
	return swap.WithFileConfigs(provider), nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); len(v) > 0 {
		return v
	}
	return defaultValue
}
