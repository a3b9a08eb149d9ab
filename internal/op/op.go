// Package op defines the operation model: the request and result values
// exchanged with handlers, and the router that owns the name->handler
// registry.
package op

import "context"

// Request is the decoded input for one dispatch. Origin is the peer address,
// advisory only. Content may be empty; it is never coerced or validated here.
type Request struct {
	Name    string
	Origin  string
	Content string
}

// Result is the outcome of one dispatch. Content is optional: nil stays nil
// on the wire, distinct from an explicit empty value.
type Result struct {
	Success bool
	Content any
}

// Ok builds a success result.
func Ok(content any) Result {
	return Result{Success: true, Content: content}
}

// Ko builds a failure result.
func Ko(content any) Result {
	return Result{Success: false, Content: content}
}

// Handler executes one operation. The request may be nil. Returning an error
// is the normal failure path; the dispatch boundary converts it to a Ko.
type Handler func(ctx context.Context, req *Request) (Result, error)
