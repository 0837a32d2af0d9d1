// Package telegram adapts the conversational workflow to the Telegram Bot
// API: updates in, replies with inline keyboards out.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/s35indy-pixel/Finance-Bot/pkg/db"
	"github.com/s35indy-pixel/Finance-Bot/pkg/flow"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/vmkteam/embedlog"
)

type Bot struct {
	api    *bot.Bot
	logger embedlog.Logger
	flow   *flow.Workflow
	debug  bool
}

type Config struct {
	Token string
	Debug bool
}

// New creates a new Telegram bot instance
func New(cfg Config, wf *flow.Workflow, logger embedlog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}

	b := &Bot{
		logger: logger,
		flow:   wf,
		debug:  cfg.Debug,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.handleUpdate),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	api, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	b.api = api

	return b, nil
}

// Start starts the bot with long polling
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}

	b.logger.Print(ctx, "telegram bot started", "username", me.Username, "id", me.ID)
	b.api.Start(ctx)

	return nil
}

// Stop gracefully stops the bot
func (b *Bot) Stop(ctx context.Context) {
	b.logger.Print(ctx, "stopping telegram bot")
}

// source maps a Telegram chat to a workflow source. Private chats are
// per-user ledgers, groups share one, supergroups count as rooms.
func source(chat models.Chat, from *models.User) flow.Source {
	src := flow.Source{ContextID: strconv.FormatInt(chat.ID, 10)}
	if from != nil {
		src.UserID = strconv.FormatInt(from.ID, 10)
	}

	switch chat.Type {
	case "group":
		src.ContextType = db.ContextGroup
	case "supergroup", "channel":
		src.ContextType = db.ContextRoom
	default:
		src.ContextType = db.ContextUser
	}

	return src
}
