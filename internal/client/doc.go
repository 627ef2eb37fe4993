// Package client implements the supervisor control-channel client: endpoint
// resolution, transport selection, identity metadata, and token precedence.
// The public API lives in the root supervise package.
package client
