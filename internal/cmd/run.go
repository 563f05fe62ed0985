package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/herobot/internal/bot"
	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/config"
	"github.com/Iron-Ham/herobot/internal/dispatch"
	"github.com/Iron-Ham/herobot/internal/heartbeat"
	"github.com/Iron-Ham/herobot/internal/logging"
	"github.com/Iron-Ham/herobot/internal/status"
	"github.com/Iron-Ham/herobot/internal/watch"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot",
	Long: `Run the bot in the foreground until a confirmed /stop or a signal.

The bot token, recipient chat id and watched directory are read from
TELEGRAM_BOT_TOKEN (or BOT_TOKEN), RID and WATCH_DIR, or from the config file.`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	logger = logger.WithRun(uuid.NewString())

	chatID, err := cfg.Bot.ChatID()
	if err != nil {
		return fmt.Errorf("invalid recipient id: %w", err)
	}

	endpoint, err := chat.NewTelegram(chat.TelegramConfig{
		Token:       cfg.Bot.Token,
		ChatID:      chatID,
		APIEndpoint: cfg.Chat.APIEndpoint,
		PollTimeout: cfg.Chat.PollTimeout,
		Silent:      cfg.Chat.Silent,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	defer func() { _ = endpoint.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, endpoint, logger)
}

// serve runs the bot against endpoint until a confirmed /stop or ctx ends.
func serve(ctx context.Context, cfg *config.Config, endpoint chat.Endpoint, logger *logging.Logger) error {
	source, err := watch.New(cfg.Watch.Dir, watch.Options{
		Debounce: cfg.Watch.Debounce,
		Ignore:   cfg.Watch.Ignore,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Watch.Dir, err)
	}
	source.Start()
	defer func() { _ = source.Close() }()

	dispatcher := dispatch.New(endpoint, dispatch.Options{
		RateLimit: cfg.Chat.RateLimit,
		Burst:     cfg.Chat.Burst,
		QueueSize: cfg.Chat.QueueSize,
	}, logger)

	coordinator := bot.New(bot.Config{
		WatchDir:   cfg.Watch.Dir,
		OnlineText: cfg.Heartbeat.OnlineText,
		Heartbeat: heartbeat.Options{
			Interval: cfg.Heartbeat.Interval,
			Prefix:   cfg.Heartbeat.Prefix,
		},
	}, bot.Deps{
		Store:      status.NewStore(afero.NewOsFs(), logger),
		Source:     source,
		Endpoint:   endpoint,
		Dispatcher: dispatcher,
	}, logger)

	logger.Info("herobot starting", "watch_dir", cfg.Watch.Dir)
	return coordinator.Run(ctx)
}
