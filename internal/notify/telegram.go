// Package notify pushes operational events to an operator over Telegram.
// Outbound only: the bot never polls for updates and handles no commands.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "taskherd/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

// Telegram sends messages to a single fixed chat. It implements
// logx.AlertSender, so warn+ log records can be forwarded to it.
type Telegram struct {
	bot  *tele.Bot
	chat tele.Recipient
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	// No poller: Send works without Start, and we never receive.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{bot: b, chat: tele.ChatID(cfg.ChatID), log: log}, nil
}

// SendAlert delivers one alert message. Telebot's Send has no context
// hook, so ctx only gates entry.
func (t *Telegram) SendAlert(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}
	_, err := t.bot.Send(t.chat, msg, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

// RunFailed reports a failed task run.
func (t *Telegram) RunFailed(ctx context.Context, task string, took time.Duration, runErr error) {
	msg := fmt.Sprintf("⚠️ task %s failed after %s: %v", task, took.Round(time.Second), runErr)
	if err := t.SendAlert(ctx, msg); err != nil {
		t.log.Debug("failure notification not delivered",
			logx.String("task", task), logx.Err(err))
	}
}
