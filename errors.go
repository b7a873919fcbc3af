package realtime

import (
	"errors"
	"fmt"
)

// AuthError used when a token cannot be supplied or the gateway rejects it.
type AuthError string

// Error implement Error interface
func (ae AuthError) Error() string {
	return fmt.Sprintf("AuthError: %s", string(ae))
}

// ConnectionError used when the handshake or transport fails during Start.
type ConnectionError string

// Error implement Error interface
func (ce ConnectionError) Error() string {
	return fmt.Sprintf("ConnectionError: %s", string(ce))
}

// NotConnectedError used when an invoke is attempted while the hub is not connected.
type NotConnectedError string

// Error implement Error interface
func (nce NotConnectedError) Error() string {
	return fmt.Sprintf("NotConnectedError: %s", string(nce))
}

// DecodeError used when an inbound payload cannot be parsed into its typed shape.
type DecodeError string

// Error implement Error interface
func (de DecodeError) Error() string {
	return fmt.Sprintf("DecodeError: %s", string(de))
}

// TransportError used when a remote call over the transport fails.
type TransportError string

// Error implement Error interface
func (te TransportError) Error() string {
	return fmt.Sprintf("TransportError: %s", string(te))
}

// ErrReconnectExhausted marks the terminal close a transport reports once its
// automatic reconnect attempts run out. Recorded subscriptions survive it.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
