// Package dispatch provides the operational HTTP surface over dispatches:
// the unread feed consumed by admin tooling.
package dispatch

import (
	"net/http"
	"time"

	"courier/internal/common/pagination"
	"courier/internal/domain/entity"
	"courier/internal/handler/http/auth"
	"courier/internal/handler/http/respond"
	dispUC "courier/internal/usecase/dispatch"
)

// DTO is the JSON shape of one dispatch in the unread feed.
type DTO struct {
	ID           int64      `json:"id"`
	MessageID    int64      `json:"message_id"`
	MessageCls   string     `json:"message_cls,omitempty"`
	Messenger    string     `json:"messenger"`
	RecipientID  *int64     `json:"recipient_id,omitempty"`
	Address      string     `json:"address"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

func toDTO(d *entity.Dispatch) DTO {
	dto := DTO{
		ID:           d.ID,
		MessageID:    d.MessageID,
		Messenger:    d.Messenger,
		RecipientID:  d.RecipientID,
		Address:      d.Address,
		Status:       d.Status.String(),
		RetryCount:   d.RetryCount,
		CreatedAt:    d.CreatedAt,
		DispatchedAt: d.DispatchedAt,
	}
	if d.Message != nil {
		dto.MessageCls = d.Message.Cls
	}
	return dto
}

// UnreadHandler lists delivered dispatches whose recipients have not opened
// them yet, one page at a time (newest first).
type UnreadHandler struct {
	Svc           *dispUC.Service
	PaginationCfg pagination.Config
}

func (h UnreadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.ParseQueryParams(r, h.PaginationCfg)
	if err != nil {
		pagination.RecordError("validation")
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	page, err := h.Svc.ListUnreadPage(r.Context(), params)
	if err != nil {
		pagination.RecordError("database")
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]DTO, 0, len(page.Dispatches))
	for _, d := range page.Dispatches {
		dtos = append(dtos, toDTO(d))
	}

	pagination.RecordRequest(http.StatusOK, params.Page)
	respond.JSON(w, http.StatusOK, pagination.NewResponse(dtos, page.Pagination))
}

// Register mounts the dispatch endpoints. The unread feed is operational
// tooling, so it sits behind the admin role on top of authz.
func Register(mux *http.ServeMux, svc *dispUC.Service, paginationCfg pagination.Config, authz func(http.Handler) http.Handler) {
	mux.Handle("GET    /dispatches/unread", authz(auth.AdminOnly(UnreadHandler{
		Svc:           svc,
		PaginationCfg: paginationCfg,
	})))
}
