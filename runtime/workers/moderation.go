package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/moderation"
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

var _ contract.Worker = (*ModerationWorker)(nil)

// ModerationWorker sits between the coordinator and the fanout.
// It censors user chat lines and forwards every other delivery untouched, in order.
type ModerationWorker struct {
	moderator *moderation.Moderator
	raw       <-chan contract.Delivery
	moderated chan<- contract.Delivery
	log       *slog.Logger
}

// NewModerationWorker accepts a nil moderator, in which case deliveries are only forwarded.
func NewModerationWorker(moderator *moderation.Moderator,
	raw <-chan contract.Delivery, moderated chan<- contract.Delivery, log *slog.Logger) *ModerationWorker {
	return &ModerationWorker{moderator: moderator, raw: raw, moderated: moderated, log: log}
}

func (w *ModerationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping moderation worker")
			return ctx.Err()
		case d, ok := <-w.raw:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			select {
			case <-ctx.Done():
				w.log.Debug("Stopping moderation worker")
				return ctx.Err()
			case w.moderated <- w.sanitize(d):
			}
		}
	}
}

func (w *ModerationWorker) sanitize(d contract.Delivery) contract.Delivery {
	msg, ok := d.Event.(event.MessagePosted)
	if !ok || msg.System || w.moderator == nil {
		return d
	}

	sanitized, foundWords := w.moderator.Censor(msg.Text)
	if len(foundWords) > 0 {
		info := whatlanggo.Detect(msg.Text)
		w.log.Info("Message censored",
			"author", msg.SenderName,
			"lang", info.Lang.Iso6391(),
			"words", len(foundWords))
	}
	msg.Text = sanitized
	return contract.Delivery{Event: msg, Recipients: d.Recipients}
}
