package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/common/pagination"
	"courier/internal/domain/entity"
	"courier/internal/handler/http/auth"
	"courier/internal/repository"
	dispUC "courier/internal/usecase/dispatch"
)

type stubDispatches struct {
	unread    []*entity.Dispatch
	unreadErr error

	gotOffset int
	gotLimit  int
}

func (s *stubDispatches) CreateBatch(ctx context.Context, dispatches []*entity.Dispatch) error {
	return nil
}

func (s *stubDispatches) Get(ctx context.Context, id int64) (*entity.Dispatch, error) {
	return nil, nil
}

func (s *stubDispatches) ClaimUnsent(ctx context.Context, priority int) ([]*entity.Dispatch, error) {
	return nil, nil
}

func (s *stubDispatches) SetStatuses(ctx context.Context, buckets repository.StatusBuckets) error {
	return nil
}

func (s *stubDispatches) LogErrors(ctx context.Context, dispatches []*entity.Dispatch) error {
	return nil
}

func (s *stubDispatches) RequeueProcessing(ctx context.Context, ids []int64) error { return nil }

func (s *stubDispatches) MarkRead(ctx context.Context, id int64) error { return nil }

func (s *stubDispatches) ListUnread(ctx context.Context) ([]*entity.Dispatch, error) {
	return s.unread, s.unreadErr
}

func (s *stubDispatches) ListUnreadPage(ctx context.Context, offset, limit int) ([]*entity.Dispatch, error) {
	s.gotOffset, s.gotLimit = offset, limit
	if s.unreadErr != nil {
		return nil, s.unreadErr
	}
	if offset >= len(s.unread) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.unread) {
		end = len(s.unread)
	}
	return s.unread[offset:end], nil
}

func (s *stubDispatches) CountUnread(ctx context.Context) (int64, error) {
	if s.unreadErr != nil {
		return 0, s.unreadErr
	}
	return int64(len(s.unread)), nil
}

func (s *stubDispatches) CountFailed(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubDispatches) CleanupSent(ctx context.Context, before *time.Time, dispatchesOnly bool) (repository.CleanupResult, error) {
	return repository.CleanupResult{}, nil
}

var _ repository.DispatchRepository = (*stubDispatches)(nil)

func newUnreadService(repo *stubDispatches) *dispUC.Service {
	return dispUC.NewService(nil, repo, nil, nil, nil, nil, nil)
}

func newUnreadHandler(repo *stubDispatches) UnreadHandler {
	return UnreadHandler{Svc: newUnreadService(repo), PaginationCfg: pagination.DefaultConfig()}
}

func TestUnreadHandler_ListsDispatches(t *testing.T) {
	recipient := int64(7)
	sentAt := time.Date(2025, 11, 2, 9, 30, 0, 0, time.UTC)
	repo := &stubDispatches{unread: []*entity.Dispatch{
		{
			ID:           3,
			MessageID:    11,
			Messenger:    "smtp",
			RecipientID:  &recipient,
			Address:      "user@example.com",
			Status:       entity.DispatchStatusSent,
			RetryCount:   1,
			CreatedAt:    sentAt.Add(-time.Hour),
			DispatchedAt: &sentAt,
			Message:      &entity.Message{ID: 11, Cls: "digest"},
		},
		{
			ID:        4,
			MessageID: 11,
			Messenger: "telegram",
			Address:   "12345",
			Status:    entity.DispatchStatusSent,
			CreatedAt: sentAt.Add(-time.Hour),
		},
	}}

	h := newUnreadHandler(repo)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatches/unread", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp pagination.Response[DTO]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	dtos := resp.Data
	require.Len(t, dtos, 2)

	assert.Equal(t, int64(3), dtos[0].ID)
	assert.Equal(t, "digest", dtos[0].MessageCls)
	assert.Equal(t, "sent", dtos[0].Status)
	assert.Equal(t, "user@example.com", dtos[0].Address)
	require.NotNil(t, dtos[0].RecipientID)
	assert.Equal(t, recipient, *dtos[0].RecipientID)
	require.NotNil(t, dtos[0].DispatchedAt)
	assert.True(t, dtos[0].DispatchedAt.Equal(sentAt))

	// Second dispatch has no joined message and no recipient id.
	assert.Equal(t, int64(4), dtos[1].ID)
	assert.Empty(t, dtos[1].MessageCls)
	assert.Nil(t, dtos[1].RecipientID)
	assert.Nil(t, dtos[1].DispatchedAt)

	assert.Equal(t, pagination.Metadata{Total: 2, Page: 1, Limit: 20, TotalPages: 1}, resp.Pagination)
}

func TestUnreadHandler_PageParameters(t *testing.T) {
	unread := make([]*entity.Dispatch, 5)
	for i := range unread {
		unread[i] = &entity.Dispatch{ID: int64(10 - i), Messenger: "echo", Address: "a"}
	}
	repo := &stubDispatches{unread: unread}

	h := newUnreadHandler(repo)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatches/unread?page=2&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, repo.gotOffset)
	assert.Equal(t, 2, repo.gotLimit)

	var resp pagination.Response[DTO]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, pagination.Metadata{Total: 5, Page: 2, Limit: 2, TotalPages: 3}, resp.Pagination)
}

func TestUnreadHandler_RejectsBadParameters(t *testing.T) {
	h := newUnreadHandler(&stubDispatches{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatches/unread?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatches/unread?limit=9999", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnreadHandler_ServiceFailure(t *testing.T) {
	repo := &stubDispatches{unreadErr: errors.New("pq: relation missing")}
	h := newUnreadHandler(repo)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatches/unread", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRegister_UnreadRequiresAdminRole(t *testing.T) {
	secret := []byte("unread-test-secret")
	mux := http.NewServeMux()
	Register(mux, newUnreadService(&stubDispatches{}), pagination.DefaultConfig(), auth.Authz(secret))

	// A recipient token is authenticated but not authorized.
	userToken, err := auth.IssueToken(secret, auth.Claims{RecipientID: 5}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/dispatches/unread", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken, err := auth.IssueToken(secret, auth.Claims{RecipientID: 1, Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/dispatches/unread", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
