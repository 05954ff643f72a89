// Package http serves the notification web surface: signed unsubscribe and
// mark-read hooks, the JWT-protected preference API, health probes and the
// Prometheus metrics endpoint, plus the middleware they share.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"courier/internal/domain/entity"
	"courier/internal/handler/http/pathutil"
	"courier/internal/handler/http/requestid"
	"courier/internal/message"
)

// Hook names used in metrics and logs.
const (
	hookUnsubscribe = "unsubscribe"
	hookMarkRead    = "mark_read"
)

// Route prefixes for the signed hook links. They match the URLs HookLinks
// embeds into rendered content.
const (
	UnsubscribePathPrefix = "/messages/unsubscribe/"
	MarkReadPathPrefix    = "/messages/ping/"
)

// HookService is the slice of the dispatch service the web hooks consume.
type HookService interface {
	// Dispatch loads a dispatch with its owning message, (nil, nil) when
	// absent.
	Dispatch(ctx context.Context, id int64) (*entity.Dispatch, error)
	MarkRead(ctx context.Context, id int64) error
	Unsubscribe(ctx context.Context, dispatch *entity.Dispatch) error
}

// Hooks serves the signed unsubscribe and mark-read links embedded into
// delivered messages.
//
// Every request ends in the same redirect: the links are clicked from mail
// clients and chat apps, and a broken or tampered link must not strand the
// recipient on an error page. Whether anything was applied is only
// observable through the hook metric and the logs.
type Hooks struct {
	svc      HookService
	signer   *message.Signer
	redirect string
}

// NewHooks creates the hook handlers. redirectURL is where every request
// lands; empty means "/".
func NewHooks(svc HookService, signer *message.Signer, redirectURL string) *Hooks {
	if redirectURL == "" {
		redirectURL = "/"
	}
	return &Hooks{svc: svc, signer: signer, redirect: redirectURL}
}

// Register attaches the hook routes to the mux.
func (h *Hooks) Register(mux *http.ServeMux) {
	mux.Handle("GET "+UnsubscribePathPrefix, http.HandlerFunc(h.unsubscribe))
	mux.Handle("GET "+MarkReadPathPrefix, http.HandlerFunc(h.markRead))
}

func (h *Hooks) unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, UnsubscribePathPrefix, hookUnsubscribe)
}

func (h *Hooks) markRead(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, MarkReadPathPrefix, hookMarkRead)
}

func (h *Hooks) serve(w http.ResponseWriter, r *http.Request, prefix, hook string) {
	logger := slog.With(
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.String("hook", hook),
	)

	ref, err := pathutil.ParseSignedRef(r.URL.Path, prefix)
	if err != nil {
		h.fail(w, r, logger, hook, "malformed path", nil)
		return
	}
	logger = logger.With(
		slog.Int64("message_id", ref.MessageID),
		slog.Int64("dispatch_id", ref.DispatchID),
	)

	dispatch, err := h.svc.Dispatch(r.Context(), ref.DispatchID)
	if err != nil {
		h.fail(w, r, logger, hook, "load dispatch", err)
		return
	}
	// An id pair that does not match a stored dispatch gets the same
	// treatment as a bad signature: nothing is mutated.
	if dispatch == nil || dispatch.MessageID != ref.MessageID {
		h.fail(w, r, logger, hook, "dispatch mismatch", nil)
		return
	}

	if !h.signer.Verify(ref.MessageID, ref.DispatchID, ref.Signature) {
		h.fail(w, r, logger, hook, "invalid signature", nil)
		return
	}

	switch hook {
	case hookUnsubscribe:
		err = h.svc.Unsubscribe(r.Context(), dispatch)
	case hookMarkRead:
		err = h.svc.MarkRead(r.Context(), dispatch.ID)
	}
	if err != nil {
		h.fail(w, r, logger, hook, "apply", err)
		return
	}

	RecordHookResult(hook, true)
	logger.Info("Hook applied")
	http.Redirect(w, r, h.redirect, http.StatusFound)
}

func (h *Hooks) fail(
	w http.ResponseWriter, r *http.Request, logger *slog.Logger, hook, reason string, err error,
) {
	RecordHookResult(hook, false)
	if err != nil {
		logger.Warn("Hook rejected", slog.String("reason", reason), slog.Any("error", err))
	} else {
		logger.Warn("Hook rejected", slog.String("reason", reason))
	}
	http.Redirect(w, r, h.redirect, http.StatusFound)
}
