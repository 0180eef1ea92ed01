// Package webclient provides the HTTP egress used by the relay and the page
// sources that produce DOM snapshots for scanning.
package webclient

import "context"

// WebClient executes requests through one backend.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

// OptionReuse asks a browser backend to snapshot the page already loaded in
// its tab instead of navigating again.
const OptionReuse = "reuse"
