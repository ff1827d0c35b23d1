// Package api handles incoming HTTP requests from partners: the Request and
// Response APIs, request lookup, reported stocks and the API method
// descriptors. It validates and decodes payloads, delegates to the services
// and maps their errors to status codes and safe client messages.
package api
