package client

import "fmt"

// RemoteError is a non-success HTTP response or an unparsable body from
// the UHI backend. Op names the originating operation. Parse is set when
// the body could not be decoded as JSON; Status keeps the HTTP status of
// the response that failed to parse.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Parse   bool
}

func (e *RemoteError) Error() string {
	if e.Parse {
		return fmt.Sprintf("%s: parse response (status %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}
