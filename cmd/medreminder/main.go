package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adapthttp "medreminder/internal/adapter/http"
	"medreminder/internal/adapter/memory"
	"medreminder/internal/adapter/postgres"
	"medreminder/internal/app"
	"medreminder/internal/config"
	"medreminder/internal/domain"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "medreminder",
		Short:         "Medication reminder and adherence server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(seedCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func reportCmd() *cobra.Command {
	var (
		username string
		end      string
		days     int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a user's adherence report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			st, err := openStores(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.close() }()

			ctx := cmd.Context()
			user, err := st.users.GetByUsername(ctx, username)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("unknown user %q", username)
			}
			if err != nil {
				return err
			}

			endDay, err := resolveDay(cfg, end)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.ReportWindowDays
			}
			days = app.ClampReportDays(days)
			report, err := app.NewReportService(st.meds).Weekly(ctx, user.ID, endDay, days)
			if err != nil {
				return err
			}

			from, to := domain.Window(endDay, days)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				User string `json:"user"`
				From string `json:"from"`
				To   string `json:"to"`
				domain.AdherenceReport
			}{username, from.Format(domain.DayLayout), to.Format(domain.DayLayout), report})
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "Username to report on")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the window (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&days, "days", 0, "Window length in days (default REPORT_WINDOW_DAYS)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func seedCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a sample user with two medications starting today",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if cfg.UseMemoryStore() {
				logger.Warn().Msg("seeding the in-memory store; data is lost on exit")
			}
			st, err := openStores(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.close() }()

			today, err := resolveDay(cfg, "")
			if err != nil {
				return err
			}
			user, err := app.Seed(cmd.Context(), st.users, st.meds, username, password, today)
			if err != nil {
				return err
			}
			logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("seeded sample data")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "demo", "Sample user name")
	cmd.Flags().StringVar(&password, "password", "", "Sample user password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if lvl, err := cfg.Level(); err == nil {
		logger = logger.Level(lvl)
	}
	return logger
}

// resolveDay parses s or, when empty, returns today in the configured zone.
func resolveDay(cfg *config.Config, s string) (time.Time, error) {
	if s != "" {
		return domain.ParseDay(s)
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	return domain.Day(time.Now().In(loc)), nil
}

type stores struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	meds     domain.MedicationRepository
	close    func() error
}

// openStores selects Postgres when DATABASE_URL is set and the in-memory
// store otherwise.
func openStores(cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.UseMemoryStore() {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		db := memory.New()
		return &stores{users: db, sessions: db.NewSessionRepo(), meds: db, close: func() error { return nil }}, nil
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	logger.Info().Msg("connected to database")
	return &stores{users: db, sessions: postgres.NewSessionRepo(db), meds: db, close: db.Close}, nil
}

func runServer(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	authSvc := app.NewAuthService(st.users, st.sessions).WithSessionTTL(cfg.SessionTTL)
	medSvc := app.NewMedicationService(st.meds)
	reportSvc := app.NewReportService(st.meds)

	oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
	if err != nil {
		return err
	}
	if oidcCfg.Enabled {
		logger.Info().Str("issuer", cfg.OIDCIssuer).Msg("sso enabled")
	}

	sweeper, err := app.NewSessionSweeper(st.sessions, cfg.SessionSweepSchedule, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := adapthttp.New(medSvc, reportSvc, authSvc, adapthttp.Options{
		WebDir:     cfg.WebDir,
		Logger:     logger,
		Location:   loc,
		OIDC:       oidcCfg,
		LoginRate:  cfg.LoginRateLimit,
		LoginBurst: cfg.LoginRateBurst,
		WindowDays: cfg.ReportWindowDays,
		TrustProxy: cfg.TrustedProxy,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("timezone", loc.String()).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
