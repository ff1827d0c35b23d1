// Package domain contains the core business entities of the data-exchange
// backend: tracked API requests and their messages, the API method
// descriptors, partners, and the reported stock records exchanged between
// supply-chain partners. It is independent of storage and transport.
package domain
