package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Value(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		want    string
		wantErr bool
	}{
		{
			name: "nil context serializes to empty document",
			ctx:  nil,
			want: "{}",
		},
		{
			name: "empty context",
			ctx:  Context{},
			want: "{}",
		},
		{
			name: "scalar values",
			ctx:  Context{"subject": "hello"},
			want: `{"subject":"hello"}`,
		},
		{
			name:    "unserializable value",
			ctx:     Context{"ch": make(chan int)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ctx.Value()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContext_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    Context
		wantErr bool
	}{
		{
			name: "NULL scans to empty context",
			src:  nil,
			want: Context{},
		},
		{
			name: "empty bytes scan to empty context",
			src:  []byte(""),
			want: Context{},
		},
		{
			name: "bytes",
			src:  []byte(`{"user":"bob","count":2}`),
			want: Context{"user": "bob", "count": float64(2)},
		},
		{
			name: "string",
			src:  `{"user":"bob"}`,
			want: Context{"user": "bob"},
		},
		{
			name:    "malformed document",
			src:     []byte(`{"user":`),
			wantErr: true,
		},
		{
			name:    "unsupported source type",
			src:     42,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctx Context
			err := ctx.Scan(tt.src)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, ctx)
		})
	}
}

func TestContext_RoundTrip(t *testing.T) {
	original := Context{"subject": "weekly digest", "items": []any{"a", "b"}}

	value, err := original.Value()
	require.NoError(t, err)

	var restored Context
	require.NoError(t, restored.Scan(value.(string)))

	assert.Equal(t, "weekly digest", restored["subject"])
	assert.Len(t, restored["items"], 2)
}

func TestContext_Clone(t *testing.T) {
	original := Context{"a": 1, "b": 2}
	clone := original.Clone()

	clone["a"] = 99
	clone["c"] = 3

	assert.Equal(t, 1, original["a"])
	assert.NotContains(t, original, "c")
}

func TestContext_CloneNil(t *testing.T) {
	var ctx Context
	clone := ctx.Clone()

	assert.NotNil(t, clone)
	assert.Empty(t, clone)
}

func TestMessage_ZeroValue(t *testing.T) {
	var message Message

	assert.Equal(t, int64(0), message.ID)
	assert.Nil(t, message.SenderID)
	assert.Equal(t, "", message.Cls)
	assert.Equal(t, "", message.GroupMark)
	assert.Equal(t, 0, message.Priority)
	assert.False(t, message.DispatchesReady)
}

func TestMessage_WithAllFields(t *testing.T) {
	senderID := int64(7)
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	message := Message{
		ID:              42,
		CreatedAt:       createdAt,
		SenderID:        &senderID,
		Cls:             "email_html",
		GroupMark:       "digest-2025-03",
		Context:         Context{"subject": "hi"},
		Priority:        10,
		DispatchesReady: true,
	}

	assert.Equal(t, int64(42), message.ID)
	assert.Equal(t, &senderID, message.SenderID)
	assert.Equal(t, "email_html", message.Cls)
	assert.Equal(t, "digest-2025-03", message.GroupMark)
	assert.Equal(t, 10, message.Priority)
	assert.True(t, message.DispatchesReady)
}
