// Package mocks provides test doubles for the store interfaces and the
// service layer. The store doubles keep data in memory so lifecycle
// scenarios can run without a database; every method can be overridden
// with a function field to inject failures.
package mocks
