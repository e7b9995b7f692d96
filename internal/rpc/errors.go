package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RPCError is a JSON-RPC error returned by the node.
type RPCError struct {
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// HTTPStatusError is a non-200 HTTP response.
type HTTPStatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += " (body: " + e.Body + ")"
	}
	return msg
}

// IsRetryable reports whether the status signals a transient condition.
func (e *HTTPStatusError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// revertCode is the JSON-RPC code geth and anvil use for execution reverts.
const revertCode = 3

// IsRevert reports whether err is a node-side execution revert. Ganache
// reports reverts from eth_sendTransaction as code -32000 with a
// "VM Exception ... revert" message, so the message is checked too.
func IsRevert(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == revertCode || strings.Contains(strings.ToLower(rpcErr.Message), "revert")
}

// retryable classifies a failed request. Node errors are final, HTTP errors
// depend on the status, anything else is a transport failure.
func retryable(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.IsRetryable()
	}
	return true
}

// retryDelay honours a server-provided Retry-After over the backoff.
func retryDelay(err error, backoff time.Duration) time.Duration {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	return backoff
}
