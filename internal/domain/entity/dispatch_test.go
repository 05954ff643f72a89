package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchStatus_String(t *testing.T) {
	tests := []struct {
		status DispatchStatus
		want   string
	}{
		{DispatchStatusPending, "pending"},
		{DispatchStatusSent, "sent"},
		{DispatchStatusError, "error"},
		{DispatchStatusFailed, "failed"},
		{DispatchStatusProcessing, "processing"},
		{DispatchStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestDispatch_ReadFlag(t *testing.T) {
	dispatch := Dispatch{ReadStatus: ReadStatusUnread}

	assert.False(t, dispatch.IsRead())

	dispatch.MarkRead()

	assert.True(t, dispatch.IsRead())
	assert.Equal(t, ReadStatusRead, dispatch.ReadStatus)
}

func TestGroupByMessenger(t *testing.T) {
	messageA := &Message{ID: 1, Cls: "plain"}
	messageB := &Message{ID: 2, Cls: "email_plain"}

	dispatches := []*Dispatch{
		{ID: 10, MessageID: 1, Messenger: "smtp", Address: "a@example.com", Message: messageA},
		{ID: 11, MessageID: 1, Messenger: "smtp", Address: "b@example.com", Message: messageA},
		{ID: 12, MessageID: 2, Messenger: "smtp", Address: "c@example.com", Message: messageB},
		{ID: 13, MessageID: 1, Messenger: "telegram", Address: "12345", Message: messageA},
	}

	grouped := GroupByMessenger(dispatches)

	require.Len(t, grouped, 2)
	require.Contains(t, grouped, "smtp")
	require.Contains(t, grouped, "telegram")

	smtp := grouped["smtp"]
	require.Len(t, smtp, 2)
	assert.Same(t, messageA, smtp[1].Message)
	assert.Len(t, smtp[1].Dispatches, 2)
	assert.Len(t, smtp[2].Dispatches, 1)

	telegram := grouped["telegram"]
	require.Len(t, telegram, 1)
	assert.Equal(t, int64(13), telegram[1].Dispatches[0].ID)
}

func TestGroupByMessenger_Empty(t *testing.T) {
	grouped := GroupByMessenger(nil)

	assert.Empty(t, grouped)
}

func TestGroupByMessenger_PreservesDispatchOrder(t *testing.T) {
	message := &Message{ID: 5}

	dispatches := []*Dispatch{
		{ID: 3, MessageID: 5, Messenger: "smtp", Message: message},
		{ID: 1, MessageID: 5, Messenger: "smtp", Message: message},
		{ID: 2, MessageID: 5, Messenger: "smtp", Message: message},
	}

	grouped := GroupByMessenger(dispatches)

	got := grouped["smtp"][5].Dispatches
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, int64(2), got[2].ID)
}
