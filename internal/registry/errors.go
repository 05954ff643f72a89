package registry

import "fmt"

// UnknownMessengerError is returned when an alias resolves to no configured
// messenger. Callers that tolerate partially configured deployments match it
// with errors.As and skip the batch instead of aborting the pass.
type UnknownMessengerError struct {
	Alias string
}

func (e *UnknownMessengerError) Error() string {
	return fmt.Sprintf("`%s` messenger is not registered", e.Alias)
}

// UnknownMessageTypeError is returned when an alias resolves to no registered
// message type.
type UnknownMessageTypeError struct {
	Alias string
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("`%s` message type is not registered", e.Alias)
}
