// Command groundlink is the operator CLI for a running groundlinkd daemon.
// It talks to the daemon's HTTP command surface and renders fleet state for
// terminals in the field.
package main
