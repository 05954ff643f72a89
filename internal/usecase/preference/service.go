// Package preference builds the per-recipient opt-in matrix rendered on
// subscription screens and applies the edits posted back from them.
package preference

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"courier/internal/message"
	"courier/internal/messenger"
	"courier/internal/registry"
	"courier/internal/repository"
)

// AliasSeparator joins the message-type and messenger aliases into the
// checkbox identifier preference forms post back ("digest|smtp").
const AliasSeparator = "|"

// Column is one messenger column of the preference matrix.
type Column struct {
	Alias string
	Title string
}

// Cell is one checkbox. A zero Cell means the column's channel does not
// carry the row's message type.
type Cell struct {
	// ID is the "message_cls|messenger_cls" pair to post back when checked.
	ID         string
	Supported  bool
	Subscribed bool
}

// Row groups message types sharing a title into one matrix line.
type Row struct {
	Title string
	// Cells align with Matrix.Columns.
	Cells []Cell
}

// Matrix is the renderable preference table for one recipient.
type Matrix struct {
	Columns []Column
	Rows    []Row
}

// MatrixOptions narrows what the matrix shows.
type MatrixOptions struct {
	// TypeFilter keeps only message types it returns true for. Nil keeps all.
	TypeFilter func(message.Type) bool

	// MessengerFilter keeps only channels it returns true for. Nil keeps all.
	MessengerFilter func(messenger.Messenger) bool

	// MessengerTitles overrides column titles by messenger alias.
	MessengerTitles map[string]string
}

// Service exposes subscription preferences to UI layers: the current pairs,
// the full opt-in matrix and the wholesale replace applied on form submit.
type Service struct {
	subscriptions repository.SubscriptionRepository
	messengers    *registry.Messengers
	types         *registry.MessageTypes
}

func NewService(
	subscriptions repository.SubscriptionRepository,
	messengers *registry.Messengers,
	types *registry.MessageTypes,
) *Service {
	return &Service{
		subscriptions: subscriptions,
		messengers:    messengers,
		types:         types,
	}
}

// Current returns the recipient's active subscription pairs.
func (s *Service) Current(ctx context.Context, recipientID int64) ([]repository.Preference, error) {
	subs, err := s.subscriptions.ListForRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	prefs := make([]repository.Preference, 0, len(subs))
	for _, sub := range subs {
		prefs = append(prefs, repository.Preference{
			MessageCls:   sub.MessageCls,
			MessengerCls: sub.MessengerCls,
		})
	}
	return prefs, nil
}

// BuildMatrix assembles the preference table for one recipient.
//
// Columns are the subscribable channels, rows the subscribable message types
// with identical titles folded into a single line. Both axes are ordered by
// title so the table renders the same regardless of registration order. Rows
// no subscribable channel carries are dropped.
func (s *Service) BuildMatrix(ctx context.Context, recipientID int64, opts MatrixOptions) (*Matrix, error) {
	subs, err := s.subscriptions.ListForRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	subscribed := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		subscribed[sub.MessageCls+AliasSeparator+sub.MessengerCls] = struct{}{}
	}

	var columns []Column
	for _, m := range s.messengers.All() {
		if !m.AllowUserSubscription() {
			continue
		}
		if opts.MessengerFilter != nil && !opts.MessengerFilter(m) {
			continue
		}
		title := m.Title()
		if override := opts.MessengerTitles[m.Alias()]; override != "" {
			title = override
		}
		columns = append(columns, Column{Alias: m.Alias(), Title: title})
	}
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Title < columns[j].Title })

	// Fold types sharing a title, keeping registration order within a row so
	// the cell alias picked for a merged row is deterministic.
	rowTypes := make(map[string][]message.Type)
	var titles []string
	for _, typ := range s.types.All() {
		if !typ.AllowUserSubscription() {
			continue
		}
		if opts.TypeFilter != nil && !opts.TypeFilter(typ) {
			continue
		}
		title := typ.Title()
		if _, seen := rowTypes[title]; !seen {
			titles = append(titles, title)
		}
		rowTypes[title] = append(rowTypes[title], typ)
	}
	sort.Strings(titles)

	matrix := &Matrix{Columns: columns, Rows: make([]Row, 0, len(titles))}
	for _, title := range titles {
		row := Row{Title: title, Cells: make([]Cell, 0, len(columns))}
		carried := false

		for _, col := range columns {
			var cell Cell
			for _, typ := range rowTypes[title] {
				if !carries(typ, col.Alias) {
					continue
				}
				cell.ID = typ.Alias() + AliasSeparator + col.Alias
				cell.Supported = true
				_, cell.Subscribed = subscribed[cell.ID]
				carried = true
				break
			}
			row.Cells = append(row.Cells, cell)
		}

		if carried {
			matrix.Rows = append(matrix.Rows, row)
		}
	}
	return matrix, nil
}

// Replace validates posted checkbox identifiers and installs them as the
// recipient's full preference set. Pairs that no longer resolve in either
// registry are dropped rather than rejected, so a stale form cannot wedge
// the update. Returns the pairs actually installed.
func (s *Service) Replace(ctx context.Context, recipientID int64, ids []string) ([]repository.Preference, error) {
	prefs := make([]repository.Preference, 0, len(ids))
	for _, id := range ids {
		messageCls, messengerCls, ok := strings.Cut(id, AliasSeparator)
		if !ok || messageCls == "" || messengerCls == "" {
			continue
		}
		if _, err := s.types.Get(messageCls); err != nil {
			continue
		}
		if _, err := s.messengers.Get(messengerCls); err != nil {
			continue
		}
		prefs = append(prefs, repository.Preference{
			MessageCls:   messageCls,
			MessengerCls: messengerCls,
		})
	}

	if err := s.subscriptions.ReplaceForRecipient(ctx, recipientID, prefs); err != nil {
		return nil, fmt.Errorf("replace preferences: %w", err)
	}

	slog.Info("Replaced subscription preferences",
		slog.Int64("recipient_id", recipientID),
		slog.Int("count", len(prefs)),
	)
	return prefs, nil
}

// carries reports whether the message type may travel through the channel.
func carries(typ message.Type, messengerAlias string) bool {
	supported := typ.SupportedMessengers()
	if len(supported) == 0 {
		return true
	}
	for _, alias := range supported {
		if alias == messengerAlias {
			return true
		}
	}
	return false
}
