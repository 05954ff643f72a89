package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Defaults(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	assert.Equal(t, http.StatusOK, wrapped.StatusCode())
	assert.Equal(t, 0, wrapped.BytesWritten())
}

func TestWriteHeader_RecordsStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"hook redirect", http.StatusFound},
		{"expired signature", http.StatusBadRequest},
		{"missing dispatch", http.StatusNotFound},
		{"handler panic", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			wrapped := Wrap(rec)

			wrapped.WriteHeader(tt.status)

			assert.Equal(t, tt.status, wrapped.StatusCode())
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestWriteHeader_SecondCallDropped(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	wrapped.WriteHeader(http.StatusFound)
	wrapped.WriteHeader(http.StatusInternalServerError)

	// The first status wins; the recorder never sees the second.
	assert.Equal(t, http.StatusFound, wrapped.StatusCode())
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestWrite_CountsBeaconBytes(t *testing.T) {
	// The mark-read hook answers with a 1x1 tracking pixel; the access log
	// reports its size from BytesWritten.
	pixel := []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\x00\x00\x00!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	n, err := wrapped.Write(pixel)
	require.NoError(t, err)

	assert.Equal(t, len(pixel), n)
	assert.Equal(t, len(pixel), wrapped.BytesWritten())
	assert.Equal(t, pixel, rec.Body.Bytes())
}

func TestWrite_ImpliesStatusOK(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	_, err := wrapped.Write([]byte(`{"status":"ok"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, wrapped.StatusCode())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWrite_AccumulatesAcrossCalls(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	_, err := wrapped.Write([]byte(`{"dispatches":[`))
	require.NoError(t, err)
	_, err = wrapped.Write([]byte(`]}`))
	require.NoError(t, err)

	assert.Equal(t, len(`{"dispatches":[`)+len(`]}`), wrapped.BytesWritten())
}

func TestWrite_AfterExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	wrapped.WriteHeader(http.StatusServiceUnavailable)
	_, err := wrapped.Write([]byte(`{"error":"no messengers configured"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, wrapped.StatusCode())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Positive(t, wrapped.BytesWritten())
}

func TestUnwrap_ReturnsUnderlyingWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := Wrap(rec)

	assert.Equal(t, http.ResponseWriter(rec), wrapped.Unwrap())
}
