package gateway

import (
	"errors"
	"fmt"
)

// Op names the gateway operation that failed.
type Op string

const (
	OpInitialize Op = "initialize"
	OpVerify     Op = "verify"
	OpList       Op = "list_transactions"
)

var defaultMessages = map[Op]string{
	OpInitialize: "Payment initialization failed",
	OpVerify:     "Payment verification failed",
	OpList:       "Failed to fetch transactions",
}

// GatewayError is returned for every gateway failure: transport, non-JSON
// bodies, undecodable JSON and non-2xx statuses. StatusCode is zero when no
// response was received.
type GatewayError struct {
	Op         Op
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) String() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}

// AsGatewayError unwraps err into a *GatewayError.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}
