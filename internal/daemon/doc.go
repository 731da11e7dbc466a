// Package daemon wires the coordination core together and runs it as a
// single-instance background process: the SQLite store, the observer
// registry and broadcaster, the three entity state machines, the WebSocket
// observer endpoint, and the thin HTTP command surface.
package daemon
