package dispatch

import (
	"context"

	"courier/internal/message"
	"courier/internal/messenger"
)

// Scheduling shortcuts for the common channels. Recipients accept whatever
// messenger.Resolve understands: address strings, entity.Recipient values,
// or user objects exposing an address for the channel.

// ScheduleEmail schedules an e-mail. String content becomes a plain-text
// message; map content becomes an HTML message rendered from the type's
// template.
func (s *Service) ScheduleEmail(ctx context.Context, subject string, content any, to ...any) (*Scheduled, error) {
	var (
		draft *message.Draft
		err   error
	)
	switch content.(type) {
	case string:
		draft, err = message.Email(subject, content)
	default:
		draft, err = message.HTMLEmail(subject, content)
	}
	if err != nil {
		return nil, err
	}
	return s.scheduleVia(ctx, messenger.AliasSMTP, draft, to)
}

// ScheduleTelegram schedules plain text to Telegram chats.
func (s *Service) ScheduleTelegram(ctx context.Context, text string, to ...any) (*Scheduled, error) {
	return s.scheduleVia(ctx, messenger.AliasTelegram, message.Plain(text), to)
}

// ScheduleSlack schedules plain text to the Slack channel webhook.
func (s *Service) ScheduleSlack(ctx context.Context, text string, to ...any) (*Scheduled, error) {
	return s.scheduleVia(ctx, messenger.AliasSlack, message.Plain(text), to)
}

// ScheduleDiscord schedules plain text to the Discord channel webhook.
func (s *Service) ScheduleDiscord(ctx context.Context, text string, to ...any) (*Scheduled, error) {
	return s.scheduleVia(ctx, messenger.AliasDiscord, message.Plain(text), to)
}

func (s *Service) scheduleVia(ctx context.Context, alias string, draft *message.Draft, to []any) (*Scheduled, error) {
	m, err := s.messengers.Get(alias)
	if err != nil {
		return nil, err
	}
	recipients, err := messenger.Resolve(m, to...)
	if err != nil {
		return nil, err
	}
	return s.Schedule(ctx, draft, recipients, nil)
}
