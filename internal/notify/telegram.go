package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"casevalue/internal/model"
)

// Sender 发送消息的最小接口，*bot.Bot 满足
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram 通过 Telegram 机器人把线索发到指定聊天
type Telegram struct {
	sender Sender
	chatID any
}

// NewTelegram 创建 Telegram 通知；chatID 可以是数字 ID 或 @channel
func NewTelegram(token, chatID string, opts ...bot.Option) (*Telegram, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramWithSender(b, chatID), nil
}

// NewTelegramWithSender 使用已有 Sender 创建通知
func NewTelegramWithSender(sender Sender, chatID string) *Telegram {
	var id any = chatID
	if n, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		id = n
	}
	return &Telegram{sender: sender, chatID: id}
}

// NotifyLead 实现 Notifier
func (t *Telegram) NotifyLead(ctx context.Context, lead *model.Lead, form *model.EvaluationForm) error {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   FormatLead(lead, form),
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
