package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/s35indy-pixel/Finance-Bot/pkg/flow"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const errReplyText = "系統忙碌中，請稍後再試 🙏"

// handleUpdate routes every update: callback queries carry quick-choice
// actions, messages carry text, voice or photos.
func (b *Bot) handleUpdate(ctx context.Context, botAPI *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, botAPI, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil {
		return
	}

	src := source(msg.Chat, msg.From)

	var (
		reply flow.Reply
		err   error
	)

	switch {
	case msg.Voice != nil:
		reply, err = b.handleVoice(ctx, botAPI, src, msg.Voice.FileID)
	case len(msg.Photo) > 0:
		// Telegram sends multiple sizes, the last one is the largest
		reply, err = b.handlePhoto(ctx, botAPI, src, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Text != "":
		reply, err = b.flow.HandleText(ctx, src, msg.Text)
	default:
		return
	}

	if err != nil {
		b.logger.Error(ctx, "failed to handle message", "chat_id", msg.Chat.ID, "err", err)
		reply = flow.Reply{Text: errReplyText}
	}

	b.sendReply(ctx, botAPI, msg.Chat.ID, reply)
}

func (b *Bot) handleVoice(ctx context.Context, botAPI *bot.Bot, src flow.Source, fileID string) (flow.Reply, error) {
	path, err := b.downloadTgFile(ctx, botAPI, fileID)
	if err != nil {
		return flow.Reply{}, fmt.Errorf("failed to download voice file: %w", err)
	}
	defer os.Remove(path)

	return b.flow.HandleAudio(ctx, src, path)
}

func (b *Bot) handlePhoto(ctx context.Context, botAPI *bot.Bot, src flow.Source, fileID string) (flow.Reply, error) {
	path, err := b.downloadTgFile(ctx, botAPI, fileID)
	if err != nil {
		return flow.Reply{}, fmt.Errorf("failed to download photo: %w", err)
	}
	defer os.Remove(path)

	image, err := os.ReadFile(path)
	if err != nil {
		return flow.Reply{}, err
	}

	return b.flow.HandleImage(ctx, src, image)
}

// handleCallback handles quick-choice button presses
func (b *Bot) handleCallback(ctx context.Context, botAPI *bot.Bot, callback *models.CallbackQuery) {
	msg := callback.Message.Message
	if msg == nil {
		b.logger.Error(ctx, "callback message is nil")
		return
	}

	b.logger.Print(ctx, "callback received", "data", callback.Data, "from", callback.From.Username)

	src := source(msg.Chat, &callback.From)

	reply, err := b.flow.HandleAction(ctx, src, callback.Data)
	if err != nil {
		b.logger.Error(ctx, "failed to handle action", "data", callback.Data, "err", err)
		reply = flow.Reply{Text: errReplyText}
	}

	_, _ = botAPI.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	})

	b.sendReply(ctx, botAPI, msg.Chat.ID, reply)
}

// sendReply renders a workflow reply: main text with quick choices as an
// inline keyboard, then any follow-up messages.
func (b *Bot) sendReply(ctx context.Context, botAPI *bot.Bot, chatID int64, reply flow.Reply) {
	if reply.Text == "" {
		return
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   reply.Text,
	}
	if len(reply.Choices) > 0 {
		params.ReplyMarkup = choicesKeyboard(reply.Choices)
	}

	if _, err := botAPI.SendMessage(ctx, params); err != nil {
		b.logger.Error(ctx, "failed to send message", "chat_id", chatID, "err", err)
		return
	}

	for _, extra := range reply.Extra {
		_, err := botAPI.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   extra,
		})
		if err != nil {
			b.logger.Error(ctx, "failed to send message", "chat_id", chatID, "err", err)
		}
	}
}

// Download Telegram file by file ID
func (b *Bot) downloadTgFile(ctx context.Context, botAPI *bot.Bot, fileID string) (string, error) {
	file, err := botAPI.GetFile(ctx, &bot.GetFileParams{
		FileID: fileID,
	})
	if err != nil {
		b.logger.Error(ctx, "failed to get file", "err", err)
		return "", err
	}

	fileURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", botAPI.Token(), file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		b.logger.Error(ctx, "failed to download file from telegram", "err", err)
		return "", err
	}
	defer resp.Body.Close()

	tmpPath := filepath.Join(os.TempDir(), "tgbot", filepath.Base(file.FilePath))
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		b.logger.Error(ctx, "failed to save downloaded file", "err", err)
		return "", err
	}

	return tmpPath, nil
}
