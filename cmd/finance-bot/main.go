package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/app"
	"github.com/s35indy-pixel/Finance-Bot/pkg/db"

	"github.com/go-pg/pg/v10"
	"github.com/joho/godotenv"
	"github.com/vmkteam/embedlog"
)

const appName = "finance-bot"

var (
	flagHost    = flag.String("host", envString("SERVER_HOST", "0.0.0.0"), "http listen host")
	flagPort    = flag.Int("port", envInt("SERVER_PORT", 8080), "http listen port")
	flagDevel   = flag.Bool("devel", envBool("SERVER_DEVEL"), "enable development mode")
	flagVerbose = flag.Bool("verbose", envBool("LOG_VERBOSE"), "enable debug logging")
	flagJSON    = flag.Bool("json", envBool("LOG_JSON"), "log in json format")
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using environment variables")
	}
	flag.Parse()

	sl := embedlog.NewLogger(*flagVerbose, *flagJSON)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbOpts, err := pgOptions()
	exitOnError(sl, ctx, "invalid database config", err)

	pgdb := pg.Connect(dbOpts)
	defer pgdb.Close()

	dbc := db.New(pgdb)
	exitOnError(sl, ctx, "failed to connect to database", dbc.Ping(ctx))

	cfg := appConfig(dbOpts)
	application, err := app.New(ctx, appName, sl, cfg, dbc)
	exitOnError(sl, ctx, "failed to create app", err)

	go func() {
		<-ctx.Done()
		if err := application.Shutdown(5 * time.Second); err != nil {
			sl.Error(context.Background(), "failed to shutdown app", "err", err)
		}
	}()

	sl.Print(ctx, "starting app", "app", appName, "devel", *flagDevel)
	if err := application.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exitOnError(sl, ctx, "app stopped", err)
	}
}

func pgOptions() (*pg.Options, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return pg.ParseURL(dsn)
	}

	return &pg.Options{
		Addr:     envString("DB_ADDR", "localhost:5432"),
		User:     envString("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: envString("DB_NAME", "financebot"),
		PoolSize: envInt("DB_POOL_SIZE", 10),
	}, nil
}

func appConfig(dbOpts *pg.Options) app.Config {
	var cfg app.Config
	cfg.Database = dbOpts

	cfg.Server.Host = *flagHost
	cfg.Server.Port = *flagPort
	cfg.Server.IsDevel = *flagDevel

	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.Telegram.Debug = envBool("TELEGRAM_DEBUG")

	cfg.Bot.HomeCurrency = envString("HOME_CURRENCY", "TWD")
	cfg.Bot.PublicURL = envString("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", *flagPort))

	cfg.OpenAI.Token = os.Getenv("OPENAI_TOKEN")
	cfg.OpenAI.Model = os.Getenv("OPENAI_MODEL")
	cfg.OpenAI.BaseURL = os.Getenv("OPENAI_BASE_URL")

	cfg.Whisper.Language = envString("WHISPER_LANGUAGE", "zh")
	cfg.Prometheus.URL = os.Getenv("PROMETHEUS_URL")

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func exitOnError(sl embedlog.Logger, ctx context.Context, msg string, err error) {
	if err != nil {
		sl.Error(ctx, msg, "err", err)
		os.Exit(1)
	}
}
