// Command bot is the marketplace entrypoint: it loads configuration, opens
// the database, runs migrations, schedules the maintenance jobs and starts
// the Telegram polling loop. SIGINT/SIGTERM stop polling and let in-flight
// messages finish.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/carbazar/go-car-market/internal/bot"
	"github.com/carbazar/go-car-market/internal/catalog"
	"github.com/carbazar/go-car-market/internal/config"
	"github.com/carbazar/go-car-market/internal/intake"
	"github.com/carbazar/go-car-market/internal/repo"
	"github.com/carbazar/go-car-market/internal/services"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.MustLoad()

	log := newLogger(cfg)

	db, err := repo.Open(cfg.DBDriver, dsn(cfg))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("opening database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("running migrations")
	}

	coord := repo.NewCoordinator(db)

	wizard := intake.NewManager(coord)
	wizard.MaxPhotos = cfg.MaxPhotos
	wizard.AdDays = cfg.DefaultAdDays

	browser := catalog.NewBrowser(db)
	browser.PageSize = cfg.PageSize

	accounts := services.NewAccountService(coord)
	moderation := services.NewModerationService(coord)

	router := bot.NewRouter(
		accounts,
		moderation,
		wizard,
		browser,
		catalog.NewSessionStore(),
		bot.NewRateLimiter(cfg.RateRPS, cfg.RateBurst),
		log,
	)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("creating bot API client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := services.NewSweeper(coord, wizard, log)
	sweeper.IntakeTTL = cfg.IntakeTTL
	sweeper.DedupTTL = cfg.DedupTTL

	sched := cron.New()
	if _, err := sched.AddFunc("30 0 * * *", func() { sweeper.TickAds(ctx) }); err != nil {
		log.Fatal().Err(err).Msg("scheduling listing ticker")
	}
	if _, err := sched.AddFunc("@hourly", sweeper.EvictIntake); err != nil {
		log.Fatal().Err(err).Msg("scheduling wizard eviction")
	}
	if _, err := sched.AddFunc("0 3 * * *", func() { sweeper.PurgeDedup(ctx) }); err != nil {
		log.Fatal().Err(err).Msg("scheduling dedup purge")
	}
	sched.Start()
	defer sched.Stop()

	transport := bot.NewTelegram(api, router, coord, log, cfg.PollTimeout)
	transport.Run(ctx)
}

func dsn(cfg config.Config) string {
	if cfg.DBDriver == "postgres" {
		return cfg.DatabaseURL
	}
	return cfg.DBPath
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
