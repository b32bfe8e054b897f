package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blogpulse/internal/repository/sqlite"

	"gopkg.in/telebot.v4"
)

// Telegram rejects messages above 4096 characters; keep headroom.
const maxMessageLen = 4000

// Bot delivers generated newsletters to subscribed Telegram chats and
// manages subscriptions.
type Bot struct {
	bot  API
	log  *slog.Logger
	repo sqlite.SubscriptionRepository
}

func NewBot(log *slog.Logger, repo sqlite.SubscriptionRepository, token string, poller time.Duration) (*Bot, error) {
	tgBot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: poller},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info("Authorized on account", "account", tgBot.Me.Username)

	botInstance := &Bot{bot: tgBot, log: log, repo: repo}

	botInstance.registerRoutes()

	return botInstance, nil
}

// Start launches the bot to listen for updates.
func (b *Bot) Start() {
	b.log.Info("Telegram bot is starting...")
	b.bot.Start()
}

// Stop gracefully stops the Telegram bot and logs the action.
func (b *Bot) Stop() {
	b.log.Info("Telegram bot is stopped...")
	b.bot.Stop()
}

// Notify sends the newsletter to every subscribed chat. Delivery failures
// are logged per chat and do not abort the remaining sends.
func (b *Bot) Notify(ctx context.Context, newsletter string) error {
	const opn = "bot.Notify"

	chatIDs, err := b.repo.GetSubscribedChats(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to get subscribed chats: %w", opn, err)
	}

	chunks := splitMessage(newsletter)
	for _, chatID := range chatIDs {
		for _, chunk := range chunks {
			if _, err = b.bot.Send(telebot.ChatID(chatID), chunk); err != nil {
				b.log.ErrorContext(ctx, "failed to deliver newsletter",
					"op", opn, "chat_id", chatID, "error", err)
				break
			}
		}
	}

	b.log.InfoContext(ctx, "Newsletter delivery finished", "op", opn, "chats", len(chatIDs))

	return nil
}

// splitMessage cuts the newsletter into Telegram-sized chunks, preferring
// line boundaries.
func splitMessage(text string) []string {
	if len(text) <= maxMessageLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > maxMessageLen {
		cut := maxMessageLen
		for i := maxMessageLen; i > 0; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}

	return chunks
}

// registerRoutes configures all routes (commands).
func (b *Bot) registerRoutes() {
	// Public routes.
	b.bot.Handle("/start", b.startHandler)
	b.bot.Handle("/subscribe", b.subscribeHandler)
	b.bot.Handle("/unsubscribe", b.unsubscribeHandler)
}
