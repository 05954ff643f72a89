// Package resilience holds the fault tolerance building blocks shared by
// the delivery pipeline: circuit breakers for the messenger APIs and the
// dispatch store, and retry with exponential backoff for calls that are
// safe to repeat.
//
// Delivery itself is never retried in-process. A failed dispatch is
// requeued with its retry count incremented and claimed again by a later
// send pass, so retry here is reserved for side calls: bot update polling,
// the boot-time database probe.
//
//	cb := circuitbreaker.New(circuitbreaker.TelegramAPIConfig())
//	_, err := cb.Execute(func() (interface{}, error) {
//	    return client.send(ctx, payload)
//	})
//
//	err := retry.WithBackoff(ctx, retry.BotAPIConfig(), func() error {
//	    return poll()
//	})
package resilience
