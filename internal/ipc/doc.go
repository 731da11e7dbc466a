// Package ipc defines the request and response types of the daemon's HTTP
// command surface and a small JSON client used by the groundlink CLI.
package ipc
