package identity

import "fmt"

// HTTPError is a gateway response with a status the client has no mapping
// for. The pipeline reports it as an internal error.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("identity gateway %s %s: status %d", e.Method, e.Path, e.Status)
}
