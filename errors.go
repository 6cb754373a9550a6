package epicleaderboard

import "net/http"

const errHTTPUnavailable = "HTTP client not available: create the client with NewClient or pass a Doer with WithDoer"

// ClientError is the only error kind returned by Client operations. Use
// errors.As to get at it.
type ClientError struct {
	Message string

	// HTTP status of the failed response, 0 when the request never got one.
	StatusCode int

	// underlying transport or decoding failure, if any
	Err error
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// HasStatus reports whether the error came from an HTTP error status.
func (e *ClientError) HasStatus() bool {
	return e.StatusCode != 0
}

func (e *ClientError) StatusText() string {
	if !e.HasStatus() {
		return ""
	}
	return http.StatusText(e.StatusCode)
}
