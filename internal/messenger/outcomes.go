package messenger

import (
	"courier/internal/domain/entity"
	"courier/internal/message"
	"courier/internal/repository"
)

// Outcomes accumulates per-dispatch delivery results during one messenger
// group of a send pass. Messengers call the Mark methods from Send; the
// orchestrator turns the buckets into a single batch status update once the
// group finishes, however far it got.
//
// The accumulator is not safe for concurrent use. Each messenger group owns
// its own instance.
type Outcomes struct {
	pending []*entity.Dispatch
	sent    []*entity.Dispatch
	errored []*entity.Dispatch
	failed  []*entity.Dispatch

	marked map[int64]struct{}
}

func NewOutcomes() *Outcomes {
	return &Outcomes{marked: make(map[int64]struct{})}
}

// MarkPending defers a dispatch to a later pass without recording a failure.
// The attempt still counts against the retry limit.
func (o *Outcomes) MarkPending(dispatch *entity.Dispatch) {
	o.pending = append(o.pending, dispatch)
	o.remember(dispatch)
}

// MarkSent records a successful delivery.
func (o *Outcomes) MarkSent(dispatch *entity.Dispatch) {
	o.sent = append(o.sent, dispatch)
	o.remember(dispatch)
}

// MarkError records a failed delivery eligible for retry on a later pass.
// When the message type caps retries and this attempt reaches the cap, the
// dispatch escalates to Failed instead. A nil type applies no cap.
func (o *Outcomes) MarkError(dispatch *entity.Dispatch, typ message.Type, err error) {
	if typ != nil {
		if limit := typ.SendRetryLimit(); limit > 0 && dispatch.RetryCount+1 >= limit {
			o.MarkFailed(dispatch, err)
			return
		}
	}

	dispatch.ErrorLog = errorText(err)
	o.errored = append(o.errored, dispatch)
	o.remember(dispatch)
}

// MarkFailed records a permanent delivery failure. Failed dispatches are
// never claimed again.
func (o *Outcomes) MarkFailed(dispatch *entity.Dispatch, err error) {
	dispatch.ErrorLog = errorText(err)
	o.failed = append(o.failed, dispatch)
	o.remember(dispatch)
}

// Marked reports whether the dispatch already landed in a bucket. The
// orchestrator uses it to fan batch-wide failures out across only the
// dispatches a messenger did not get to.
func (o *Outcomes) Marked(dispatch *entity.Dispatch) bool {
	_, ok := o.marked[dispatch.ID]
	return ok
}

// Buckets shapes the accumulated outcomes for a batch status update.
func (o *Outcomes) Buckets() repository.StatusBuckets {
	return repository.StatusBuckets{
		Sent:    o.sent,
		Error:   o.errored,
		Failed:  o.failed,
		Pending: o.pending,
	}
}

// Logged returns the dispatches whose failure descriptions need persisting
// as dispatch error rows, in marking order within each severity.
func (o *Outcomes) Logged() []*entity.Dispatch {
	logged := make([]*entity.Dispatch, 0, len(o.errored)+len(o.failed))
	logged = append(logged, o.errored...)
	logged = append(logged, o.failed...)
	return logged
}

// Counts returns bucket sizes for logging and metrics.
func (o *Outcomes) Counts() (sent, errored, failed, pending int) {
	return len(o.sent), len(o.errored), len(o.failed), len(o.pending)
}

func (o *Outcomes) remember(dispatch *entity.Dispatch) {
	o.marked[dispatch.ID] = struct{}{}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
