package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/xero-client/internal/config"
	"github.com/Sternrassler/xero-client/pkg/accounting"
	"github.com/Sternrassler/xero-client/pkg/client"
	"github.com/Sternrassler/xero-client/pkg/logging"
	"github.com/Sternrassler/xero-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app holds what the subcommands share. It is populated by the root
// command's PersistentPreRunE and released by teardown.
type app struct {
	configPath  string
	logLevel    string
	metricsAddr string
	output      string

	cfg      config.Config
	redis    *redis.Client
	client   *client.Client
	contacts *accounting.Contacts
	metrics  *http.Server
	logger   zerolog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "xero-contacts",
		Short:         "Read and write Xero contacts",
		Long:          "xero-contacts talks to the Xero Accounting API contacts resource of one tenant.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # List every contact, one page at a time
  xero-contacts list --all

  # Show page 3 as JSON
  xero-contacts list --page 3 --output json

  # Create a contact
  xero-contacts create --name "Johnnies Coffee" --first-name John --last-name Smith

  # Rename a contact
  xero-contacts update bd2270c3-8706-4c11-9cfb-000b551c3f51 --name "Johnnies Tea"`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "output format: table or json")

	cmd.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newAttachmentsCmd(a),
		newLimitsCmd(a),
	)

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "help" {
		return nil
	}
	if a.output != outputTable && a.output != outputJSON {
		return fmt.Errorf("unknown output format %q (want %s or %s)", a.output, outputTable, outputJSON)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override environment variables and config file
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = a.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logging.Setup(cfg.LoggingSetup(cmd.ErrOrStderr()))
	a.logger = logging.NewLogger(logging.ComponentCLI)

	a.redis = cfg.RedisClient()
	if a.redis != nil {
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	a.client, err = client.New(cfg.ClientConfig(a.redis))
	if err != nil {
		return fmt.Errorf("creating xero client: %w", err)
	}
	a.contacts = accounting.NewContacts(a.client)

	if cfg.Metrics.Addr != "" {
		addr, err := a.startMetrics(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		a.logger.Info().Str("addr", addr.String()).Msg("Serving metrics")
	}

	return nil
}

// executeRoot runs the command line in args. Whatever setup opened is
// released afterwards, also when setup or the command fails.
func executeRoot(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	defer func() {
		err = errors.Join(err, a.teardown(ctx))
	}()
	return root.ExecuteContext(ctx)
}

// teardown releases what setup opened. It is safe to call more than once.
func (a *app) teardown(ctx context.Context) error {
	var errs []error

	if a.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		errs = append(errs, a.metrics.Shutdown(shutdownCtx))
		a.metrics = nil
	}
	if a.client != nil {
		errs = append(errs, a.client.Close())
		a.client = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}

	return errors.Join(errs...)
}

// startMetrics serves /metrics and /health on addr and returns the bound
// address.
func (a *app) startMetrics(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return ln.Addr(), nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
