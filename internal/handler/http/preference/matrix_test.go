package preference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/domain/entity"
	"courier/internal/handler/http/auth"
	"courier/internal/message"
	"courier/internal/messenger"
	"courier/internal/registry"
	"courier/internal/repository"
	prefUC "courier/internal/usecase/preference"
)

type stubMessenger struct {
	alias string
	title string
	allow bool
}

func (m *stubMessenger) Alias() string               { return m.alias }
func (m *stubMessenger) Title() string               { return m.title }
func (m *stubMessenger) AllowUserSubscription() bool { return m.allow }
func (m *stubMessenger) Address(to any) string       { return messenger.AddressOf(m.alias, to) }

func (m *stubMessenger) BeforeSend(ctx context.Context) error { return nil }

func (m *stubMessenger) Send(ctx context.Context, batch *messenger.Batch, out *messenger.Outcomes) error {
	return nil
}

func (m *stubMessenger) AfterSend(ctx context.Context) error { return nil }

func (m *stubMessenger) SendTest(ctx context.Context, to, text string) error { return nil }

type stubSubscriptions struct {
	subs       []*entity.Subscription
	listErr    error
	replaceErr error

	replacedID    int64
	replacedPrefs []repository.Preference
}

func (s *stubSubscriptions) Create(ctx context.Context, sub *entity.Subscription) error {
	s.subs = append(s.subs, sub)
	return nil
}

func (s *stubSubscriptions) Cancel(ctx context.Context, ref repository.SubscriberRef, messageCls, messengerCls string) error {
	return nil
}

func (s *stubSubscriptions) ListForRecipient(ctx context.Context, recipientID int64) ([]*entity.Subscription, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*entity.Subscription
	for _, sub := range s.subs {
		if sub.RecipientID != nil && *sub.RecipientID == recipientID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubSubscriptions) ListForMessageCls(ctx context.Context, messageCls string) ([]*entity.Subscription, error) {
	return nil, nil
}

func (s *stubSubscriptions) ReplaceForRecipient(ctx context.Context, recipientID int64, prefs []repository.Preference) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replacedID = recipientID
	s.replacedPrefs = prefs
	return nil
}

var (
	_ messenger.Messenger               = (*stubMessenger)(nil)
	_ repository.SubscriptionRepository = (*stubSubscriptions)(nil)
)

func subscribedTo(recipientID int64, messageCls, messengerCls string) *entity.Subscription {
	return &entity.Subscription{
		MessageCls:   messageCls,
		MessengerCls: messengerCls,
		RecipientID:  &recipientID,
	}
}

// newHandlerService wires the preference usecase over two channels and two
// message types, one of which travels only over telegram.
func newHandlerService(subs *stubSubscriptions) *prefUC.Service {
	messengers := registry.NewMessengers()
	messengers.Register(
		&stubMessenger{alias: "smtp", title: "E-mail", allow: true},
		&stubMessenger{alias: "telegram", title: "Telegram", allow: true},
	)
	types := registry.NewMessageTypes()
	types.Register(
		message.NewDefinition("digest", message.WithTitle("Weekly digest")),
		message.NewDefinition("alerts",
			message.WithTitle("Alerts"),
			message.WithSupportedMessengers("telegram")),
	)
	return prefUC.NewService(subs, messengers, types)
}

func authedRequest(method, target string, body io.Reader, recipientID int64) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.WithClaims(req.Context(), auth.Claims{RecipientID: recipientID}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestMatrixHandler_ServesTable(t *testing.T) {
	subs := &stubSubscriptions{subs: []*entity.Subscription{
		subscribedTo(5, "digest", "smtp"),
	}}
	h := MatrixHandler{Svc: newHandlerService(subs)}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/preferences", nil, 5))

	require.Equal(t, http.StatusOK, rec.Code)
	var dto MatrixDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))

	require.Len(t, dto.Columns, 2)
	assert.Equal(t, ColumnDTO{Alias: "smtp", Title: "E-mail"}, dto.Columns[0])
	assert.Equal(t, ColumnDTO{Alias: "telegram", Title: "Telegram"}, dto.Columns[1])

	require.Len(t, dto.Rows, 2)

	alerts := dto.Rows[0]
	assert.Equal(t, "Alerts", alerts.Title)
	require.Len(t, alerts.Cells, 2)
	assert.Equal(t, CellDTO{}, alerts.Cells[0])
	assert.Equal(t, CellDTO{ID: "alerts|telegram", Supported: true}, alerts.Cells[1])

	digest := dto.Rows[1]
	assert.Equal(t, "Weekly digest", digest.Title)
	require.Len(t, digest.Cells, 2)
	assert.Equal(t, CellDTO{ID: "digest|smtp", Supported: true, Subscribed: true}, digest.Cells[0])
	assert.Equal(t, CellDTO{ID: "digest|telegram", Supported: true}, digest.Cells[1])
}

func TestMatrixHandler_NoClaims(t *testing.T) {
	h := MatrixHandler{Svc: newHandlerService(&stubSubscriptions{})}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preferences", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized: no token claims", decodeError(t, rec))
}

func TestMatrixHandler_ServiceFailure(t *testing.T) {
	subs := &stubSubscriptions{listErr: errors.New("pq: connection refused")}
	h := MatrixHandler{Svc: newHandlerService(subs)}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest(http.MethodGet, "/preferences", nil, 5))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec))
}
