package gateway

import "errors"

var (
	ErrAliasRequired      = errors.New("gateway: alias required")
	ErrTokenRequired      = errors.New("gateway: token required")
	ErrAliasExists        = errors.New("gateway: alias already registered")
	ErrUnknownAlias       = errors.New("gateway: unknown alias")
	ErrEventNameRequired  = errors.New("gateway: event name required")
	ErrNilCallback        = errors.New("gateway: nil callback")
	ErrNilPayload         = errors.New("gateway: nil payload")
	ErrInvalidPayload     = errors.New("gateway: payload is not valid json")
	ErrAlreadyRunning     = errors.New("gateway: session already running")
	ErrGatewayURLRequired = errors.New("gateway: gateway url required")
	ErrDial               = errors.New("gateway: dial failed")
	ErrHandshake          = errors.New("gateway: handshake failed")
	ErrConnectExhausted   = errors.New("gateway: connect attempts exhausted")
	ErrSessionTerminated  = errors.New("gateway: session terminated")
	ErrHandlerPanic       = errors.New("gateway: handler panic")
	ErrDiscovery          = errors.New("gateway: discovery failed")

	errPumpStopped = errors.New("gateway: pump stopped")
)
