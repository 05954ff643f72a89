package auth

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuthRequest_CountsByResult(t *testing.T) {
	authRequestsTotal.Reset()

	RecordAuthRequest("success")
	RecordAuthRequest("success")
	RecordAuthRequest("failure")

	assert.Equal(t, 2.0, testutil.ToFloat64(authRequestsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(authRequestsTotal.WithLabelValues("failure")))
}

func TestRecordForbidden_CountsByMethod(t *testing.T) {
	forbiddenAttempts.Reset()

	RecordForbidden(http.MethodGet)
	RecordForbidden(http.MethodGet)
	RecordForbidden(http.MethodPut)

	assert.Equal(t, 2.0, testutil.ToFloat64(forbiddenAttempts.WithLabelValues(http.MethodGet)))
	assert.Equal(t, 1.0, testutil.ToFloat64(forbiddenAttempts.WithLabelValues(http.MethodPut)))
}
