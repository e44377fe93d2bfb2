package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/codegen-ide/internal/ai"
	"github.com/suPer8Hu/codegen-ide/internal/chat"
	"github.com/suPer8Hu/codegen-ide/internal/config"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"github.com/suPer8Hu/codegen-ide/internal/generation"
	"github.com/suPer8Hu/codegen-ide/internal/httpapi"
	"github.com/suPer8Hu/codegen-ide/internal/httpapi/handlers"
	"github.com/suPer8Hu/codegen-ide/internal/project"
	"github.com/suPer8Hu/codegen-ide/internal/store/backend"
	"github.com/suPer8Hu/codegen-ide/internal/store/rabbitmq"
	"github.com/suPer8Hu/codegen-ide/internal/store/redisstore"
	"github.com/suPer8Hu/codegen-ide/internal/templates"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ide-server",
	Short:        "Code-generation IDE backend",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed-templates",
	Short: "Load the built-in templates into an empty catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		st, err := backend.NewFromConfig(cfg.Storage, log)
		if err != nil {
			return err
		}
		defer st.Close()

		tpls := templates.NewService(st, project.NewService(st, nil, log), log)
		n, err := tpls.SeedDefaults(cmd.Context())
		if err != nil {
			return fmt.Errorf("seeding templates: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d templates\n", n)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging")
	rootCmd.AddCommand(serveCmd, seedCmd)
}

// setup loads .env, the config and the logger shared by every command.
func setup() (config.Config, *zap.Logger, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := newLogger(cfg.IsDev() || verbose)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := backend.NewFromConfig(cfg.Storage, log)
	if err != nil {
		return err
	}
	defer st.Close()

	provider, err := ai.NewDefaultRegistry().Get(ctx, cfg.Generation.Provider, ai.Settings{
		BaseURL:  cfg.Generation.BaseURL,
		APIToken: cfg.Generation.APIToken,
		Model:    cfg.Generation.Model,
		Timeout:  cfg.Generation.Timeout,
	})
	if err != nil {
		return err
	}
	gen := generation.NewClient(provider, cfg.Generation.MaxTokens, log)

	broker := events.NewBroker(log)
	defer broker.Close()
	pub, closeBus, err := eventBus(ctx, cfg.Events, broker, log)
	if err != nil {
		return err
	}
	defer closeBus()
	notify := events.NewNotifier(pub, log)

	projects := project.NewService(st, notify, log)
	tpls := templates.NewService(st, projects, log)
	chatSvc := chat.NewService(st, gen, notify, log)

	if n, err := tpls.SeedDefaults(ctx); err != nil {
		log.Warn("seeding templates failed", zap.Error(err))
	} else if n > 0 {
		log.Info("seeded default templates", zap.Int("count", n))
	}

	h := handlers.NewHandler(projects, tpls, chatSvc, broker, log)
	r := httpapi.NewRouter(h, httpapi.Options{CORSOrigins: cfg.CORSOrigins, Log: log})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// generation calls and SSE streams are long-lived
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.Storage.Type),
			zap.String("provider", cfg.Generation.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	broker.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// eventBus returns the publisher services notify through. With a redis bus,
// events go to redis and a relay feeds them back into the local broker so
// every instance sees them. A rabbit URL adds the exchange as a second sink.
func eventBus(ctx context.Context, cfg config.Events, broker *events.Broker, log *zap.Logger) (events.Publisher, func(), error) {
	var (
		sinks   events.Fanout
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	switch cfg.Bus {
	case config.BusRedis:
		rds, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, rds.Close)
		// subscribed before serving; a dead relay would leave SSE silent
		sub, err := rds.Subscribe(ctx)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		go sub.Relay(ctx, broker)
		sinks = append(sinks, rds)
		log.Info("event bus: redis", zap.String("addr", cfg.RedisAddr))
	default:
		sinks = append(sinks, broker)
	}

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, pub.Close)
		sinks = append(sinks, pub)
		log.Info("event sink: rabbitmq", zap.String("exchange", cfg.RabbitExchange))
	}
	return sinks, closeAll, nil
}
