// Package transport declares the interfaces shared by the GBN and SR
// reliable engines and by the channel they run on. The payload crossing
// either boundary is opaque — neither interface interprets bytes.
package transport

import "time"

// Transport is implemented by both reliable engines (pkg/gbn, pkg/sr).
// Recv returns (0, nil) on timeout and (n, nil) with n>0 when an
// in-order application message was delivered.
type Transport interface {
	Send(data []byte) error
	Recv(out []byte, timeout time.Duration) (int, error)
	Close() error
}

// Channel is implemented by pkg/channel and consumed by both engines.
// Send returns the number of bytes logically accepted (see pkg/channel's
// doc comment on the enqueue-vs-drain distinction); Recv returns (0, nil)
// on timeout.
type Channel interface {
	Send(data []byte) (int, error)
	Recv(buf []byte, timeout time.Duration) (int, error)
	Close() error
}
