// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"

	"github.com/cascata-io/cascata/service/notification"
)

// Service is a Telegram-backed Notifier.  Recipient ids are chat ids
// (numeric) or @channel names.
type Service struct {
	bot *bot.Bot
}

// New creates the adapter from a bot token.
func New(token string, options ...bot.Option) (*Service, error) {
	b, err := bot.New(token, options...)
	if err != nil {
		return nil, err
	}
	return &Service{bot: b}, nil
}

// Send delivers the message to the recipient chat.  The channel argument
// is ignored; this adapter only speaks Telegram.
func (s *Service) Send(ctx context.Context, recipientID, message, _ string) (*notification.DeliveryResult, error) {
	var chatID any = recipientID
	if id, err := strconv.ParseInt(recipientID, 10, 64); err == nil {
		chatID = id
	}
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	})
	if err != nil {
		return &notification.DeliveryResult{Delivered: false, Detail: err.Error()}, err
	}
	return &notification.DeliveryResult{Delivered: true}, nil
}

var _ notification.Notifier = (*Service)(nil)
