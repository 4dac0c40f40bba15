// Package httpclient is a standalone HTTP/2 client: a call dispatcher, a
// multiplexed connection pool, and an HTTP/2 frame/stream implementation
// under internal/h2. It is not a wrapper around net/http.
//
// A Request is built, handed to Client.NewCall, and either executed
// synchronously (Call.Execute) or enqueued for asynchronous dispatch
// (Call.Enqueue). The call flows through an Interceptor Chain
// (interceptor package), which resolves a connection from the pool
// package and drives it over internal/h2.
package httpclient
