// Package fault defines the error taxonomy shared by the coordination core.
//
// Commands classify failures with sentinel markers: validation failures are
// rejected before any state mutation, precondition failures mean an entity is
// not in the required state, execution failures happen inside an already
// running task, and delivery failures are isolated to a single observer
// connection. The HTTP layer maps markers to status codes via HTTPStatus.
package fault
