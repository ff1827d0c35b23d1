// Package postgres provides PostgreSQL implementations of the store
// interfaces: tracked API requests with their messages, and the reported
// product stocks carried by consumed responses. Row-level locks taken with
// SELECT ... FOR UPDATE serialize request state changes per identifier.
package postgres
