package bot

import (
	"context"
	"fmt"

	"gopkg.in/telebot.v4"
)

// startHandler process command /start.
func (b *Bot) startHandler(ctx telebot.Context) error {
	b.log.Info("User started the bot", "username", ctx.Sender().Username)

	if err := ctx.Send("Hello! Use /subscribe to receive the blog newsletter and /unsubscribe to stop."); err != nil {
		return fmt.Errorf("failed to send greeting message: %w", err)
	}

	return nil
}

// subscribeHandler process command /subscribe.
func (b *Bot) subscribeHandler(ctx telebot.Context) error {
	chatID := ctx.Chat().ID

	if err := b.repo.SubscribeChat(context.Background(), chatID); err != nil {
		b.log.Error("failed to subscribe chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to subscribe chat %d: %w", chatID, err)
	}
	b.log.Info("Chat subscribed", "chat_id", chatID)

	if err := ctx.Send("Subscribed! You will receive the newsletter after every run."); err != nil {
		return fmt.Errorf("failed to send subscribe confirmation: %w", err)
	}

	return nil
}

// unsubscribeHandler process command /unsubscribe.
func (b *Bot) unsubscribeHandler(ctx telebot.Context) error {
	chatID := ctx.Chat().ID

	if err := b.repo.UnsubscribeChat(context.Background(), chatID); err != nil {
		b.log.Error("failed to unsubscribe chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to unsubscribe chat %d: %w", chatID, err)
	}
	b.log.Info("Chat unsubscribed", "chat_id", chatID)

	if err := ctx.Send("Unsubscribed. You will no longer receive the newsletter."); err != nil {
		return fmt.Errorf("failed to send unsubscribe confirmation: %w", err)
	}

	return nil
}
