package telegram

import (
	"github.com/go-telegram/bot/models"

	"github.com/s35indy-pixel/Finance-Bot/pkg/flow"
)

// buttons per inline keyboard row
const keyboardRowSize = 3

// choicesKeyboard renders workflow quick choices as an inline keyboard.
// Choice actions travel back in the button callback data.
func choicesKeyboard(choices []flow.Choice) models.ReplyMarkup {
	var rows [][]models.InlineKeyboardButton
	row := make([]models.InlineKeyboardButton, 0, keyboardRowSize)

	for _, c := range choices {
		row = append(row, models.InlineKeyboardButton{
			Text:         c.Label,
			CallbackData: c.Action,
		})
		if len(row) == keyboardRowSize {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, keyboardRowSize)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}
