package app

import (
	"context"
	"time"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/flow"
	"github.com/s35indy-pixel/Finance-Bot/pkg/ledger"
	"github.com/s35indy-pixel/Finance-Bot/pkg/services"
	"github.com/s35indy-pixel/Finance-Bot/pkg/telegram"

	"github.com/go-pg/pg/v10"
	monitor "github.com/hypnoglow/go-pg-monitor"
	"github.com/labstack/echo/v4"
	"github.com/vmkteam/appkit"
	"github.com/vmkteam/embedlog"
)

type Config struct {
	Database *pg.Options
	Server   struct {
		Host    string
		Port    int
		IsDevel bool
	}
	Telegram struct {
		Token string
		Debug bool
	}
	Bot struct {
		HomeCurrency string
		PublicURL    string
	}
	OpenAI struct {
		Token   string
		Model   string
		BaseURL string
	}
	Whisper struct {
		Language string
	}
	Prometheus struct {
		URL string
	}
}

type App struct {
	embedlog.Logger
	appName string
	cfg     Config
	db      db.DB
	books   *ledger.Manager
	mon     *monitor.Monitor
	echo    *echo.Echo
	tgBot   *telegram.Bot
}

func New(ctx context.Context, appName string, sl embedlog.Logger, cfg Config, dbc db.DB) (*App, error) {
	a := &App{
		appName: appName,
		cfg:     cfg,
		db:      dbc,
		echo:    appkit.NewEcho(),
		Logger:  sl,
	}

	a.books = ledger.NewManager(dbc, ledger.Config{
		HomeCurrency:    cfg.Bot.HomeCurrency,
		AutoCreateUsers: true,
	}, sl)

	if cfg.Telegram.Token != "" {
		wf := flow.New(a.books,
			a.extractor(), a.imageExtractor(),
			ledger.NewFxClient(),
			ledger.NewLocalWhisper(cfg.Whisper.Language),
			flow.Config{PublicURL: cfg.Bot.PublicURL},
			sl,
		)

		tgBot, err := telegram.New(telegram.Config{
			Token: cfg.Telegram.Token,
			Debug: cfg.Telegram.Debug,
		}, wf, sl)
		if err != nil {
			return nil, err
		}
		a.tgBot = tgBot
	}

	return a, nil
}

// extractor picks the text record parser. Without an OpenAI token the bot
// still works through the rule-based quick parser plus the mock extractor.
func (a *App) extractor() services.Extractor {
	if a.cfg.OpenAI.Token != "" {
		return ledger.NewOpenAI(a.cfg.OpenAI.BaseURL, a.cfg.OpenAI.Token, a.cfg.OpenAI.Model)
	}
	return services.NewMockExtractor(a.Logger)
}

func (a *App) imageExtractor() services.ImageExtractor {
	if a.cfg.OpenAI.Token != "" {
		return ledger.NewOpenAI(a.cfg.OpenAI.BaseURL, a.cfg.OpenAI.Token, a.cfg.OpenAI.Model)
	}
	return services.NewMockExtractor(a.Logger)
}

// Run is a function that runs application.
func (a *App) Run(ctx context.Context) error {
	if err := a.db.EnsureSchema(ctx); err != nil {
		return err
	}

	a.registerMetrics()
	a.restoreMetrics(ctx)
	a.registerHandlers()
	a.registerDebugHandlers()
	a.registerMetadata()

	// Start Telegram bot if configured
	if a.tgBot != nil {
		go func() {
			if err := a.tgBot.Start(ctx); err != nil {
				a.Error(ctx, "telegram bot error", "err", err)
			}
		}()
	}

	return a.runHTTPServer(ctx, a.cfg.Server.Host, a.cfg.Server.Port)
}

// Shutdown is a function that gracefully stops HTTP server.
func (a *App) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop Telegram bot
	if a.tgBot != nil {
		a.tgBot.Stop(ctx)
	}

	a.mon.Close()

	return a.echo.Shutdown(ctx)
}

// registerMetadata is a function that registers meta info from service.
func (a *App) registerMetadata() {
	services := []appkit.ServiceMetadata{}
	if a.tgBot != nil {
		// Telegram bot runs asynchronously in a separate goroutine
		services = append(services, appkit.NewServiceMetadata("telegram-bot", appkit.MetadataServiceTypeAsync))
	}

	opts := appkit.MetadataOpts{
		HasPublicAPI:  true, // CSV export endpoint
		HasPrivateAPI: false,
		DBs: []appkit.DBMetadata{
			appkit.NewDBMetadata(a.cfg.Database.Database, a.cfg.Database.PoolSize, false),
		},
		Services: services,
	}

	md := appkit.NewMetadataManager(opts)
	md.RegisterMetrics()

	a.echo.GET("/debug/metadata", md.Handler)
}
