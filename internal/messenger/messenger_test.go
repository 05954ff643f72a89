package messenger

import (
	"context"
	"errors"
	"testing"

	"courier/internal/domain/entity"
	"courier/internal/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUser struct {
	id        int64
	addresses map[string]string
}

func (u fakeUser) RecipientID() int64 { return u.id }

func (u fakeUser) RecipientAddress(messengerAlias string) string {
	return u.addresses[messengerAlias]
}

func TestAddressOf(t *testing.T) {
	userID := int64(7)

	tests := []struct {
		name string
		to   any
		want string
	}{
		{name: "plain string", to: "user@example.com", want: "user@example.com"},
		{name: "recipient value", to: entity.Recipient{Address: "chat-1"}, want: "chat-1"},
		{name: "recipient pointer", to: &entity.Recipient{UserID: &userID, Address: "chat-2"}, want: "chat-2"},
		{name: "nil recipient pointer", to: (*entity.Recipient)(nil), want: ""},
		{name: "addressable", to: fakeUser{id: 7, addresses: map[string]string{"echo": "u7"}}, want: "u7"},
		{name: "unsupported type", to: 42, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddressOf("echo", tt.to))
		})
	}
}

func TestResolve(t *testing.T) {
	echo := NewEcho()

	t.Run("mixed recipients", func(t *testing.T) {
		user := fakeUser{id: 9, addresses: map[string]string{AliasEcho: "user-9"}}

		resolved, err := Resolve(echo, "direct-address", user)
		require.NoError(t, err)
		require.Len(t, resolved, 2)

		assert.Equal(t, entity.Recipient{Messenger: AliasEcho, Address: "direct-address"}, resolved[0])

		require.NotNil(t, resolved[1].UserID)
		assert.Equal(t, int64(9), *resolved[1].UserID)
		assert.Equal(t, "user-9", resolved[1].Address)
	})

	t.Run("recipient value keeps user link", func(t *testing.T) {
		userID := int64(3)

		resolved, err := Resolve(echo, entity.Recipient{UserID: &userID, Address: "kept"})
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		require.NotNil(t, resolved[0].UserID)
		assert.Equal(t, int64(3), *resolved[0].UserID)
	})

	t.Run("unaddressable recipient rejected", func(t *testing.T) {
		_, err := Resolve(echo, "ok", fakeUser{id: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrInvalidAddress)
	})
}

func TestWarmupError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &WarmupError{Messenger: "smtp", Err: cause}

	assert.Equal(t, "smtp warmup: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

type scriptedSender struct {
	buildErr    map[string]error
	transmitErr map[string]error
	transmitted []string
}

func (s *scriptedSender) BuildPayload(text, address string) (any, error) {
	if err := s.buildErr[address]; err != nil {
		return nil, err
	}
	return text + "->" + address, nil
}

func (s *scriptedSender) Transmit(ctx context.Context, payload any) error {
	wire := payload.(string)
	s.transmitted = append(s.transmitted, wire)

	for address, err := range s.transmitErr {
		if wire == "body->"+address {
			return err
		}
	}
	return nil
}

func TestSendEach(t *testing.T) {
	typ := message.NewDefinition("note", message.WithRetryLimit(10))

	sender := &scriptedSender{
		buildErr: map[string]error{
			"broken-build": errors.New("cannot build"),
		},
		transmitErr: map[string]error{
			"transient": &ServerError{StatusCode: 502, Message: "bad gateway"},
			"permanent": &ClientError{StatusCode: 404, Message: "no such channel"},
		},
	}

	dispatches := []*entity.Dispatch{
		{ID: 1, Address: "good", MessageCache: "body"},
		{ID: 2, Address: "broken-build", MessageCache: "body"},
		{ID: 3, Address: "transient", MessageCache: "body"},
		{ID: 4, Address: "permanent", MessageCache: "body"},
	}

	out := NewOutcomes()
	batch := &Batch{Type: typ, Message: &entity.Message{ID: 1}, Dispatches: dispatches}

	SendEach(context.Background(), sender, batch, out)

	buckets := out.Buckets()
	require.Len(t, buckets.Sent, 1)
	assert.Equal(t, int64(1), buckets.Sent[0].ID)

	require.Len(t, buckets.Error, 2)
	assert.Equal(t, int64(2), buckets.Error[0].ID)
	assert.Equal(t, int64(3), buckets.Error[1].ID)

	require.Len(t, buckets.Failed, 1)
	assert.Equal(t, int64(4), buckets.Failed[0].ID)

	// The broken build never reaches the wire.
	assert.NotContains(t, sender.transmitted, "body->broken-build")
}
