package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/codegen-ide/internal/config"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"github.com/suPer8Hu/codegen-ide/internal/store/rabbitmq"
	"go.uber.org/zap"
)

var (
	configPath string
	projectID  uint64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ide-events",
	Short:        "Print project change events from the RabbitMQ exchange as JSON lines",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Events.RabbitURL == "" {
			return fmt.Errorf("RABBIT_URL is not set")
		}

		log, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()

		sub, err := rabbitmq.NewSubscriber(cfg.Events.RabbitURL, cfg.Events.RabbitExchange, log)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("tailing events",
			zap.String("exchange", cfg.Events.RabbitExchange),
			zap.Uint64("project_id", projectID),
		)
		return tail(ctx, sub, cmd.OutOrStdout(), projectID)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.Flags().Uint64VarP(&projectID, "project", "p", 0, "only print events of this project")
}

type source interface {
	Run(ctx context.Context, handle func(events.Event)) error
}

// tail writes one JSON object per event. A zero project prints everything.
func tail(ctx context.Context, src source, w io.Writer, project uint64) error {
	enc := json.NewEncoder(w)
	return src.Run(ctx, func(e events.Event) {
		if project != 0 && e.ProjectID != project {
			return
		}
		_ = enc.Encode(e)
	})
}
