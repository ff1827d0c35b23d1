// Package service contains the use cases of the data-exchange backend.
//
// RequestService records inbound product-stock requests and moves them
// through their lifecycle. ResponseService consumes the responses partners
// send for requests in PROCESSING and completes them.
//
// Every state change runs in one transaction that locks the request row, so
// concurrent callers on the same identifier are serialized. Lifecycle events
// are emitted only after the transaction commits.
//
// Errors:
//   - *ValidationError for malformed payloads (no state change)
//   - ErrCorrelation for responses without a matching in-flight request
//   - ErrRequestNotFound for unknown identifiers
//   - ErrInvalidTransition for moves the state machine does not allow
//   - anything else is a *ServiceError wrapping the store error, which keeps
//     store.ErrStorage visible to errors.Is
package service
