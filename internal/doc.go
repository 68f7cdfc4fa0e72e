// Package internal groups the packages private to authcore.
//
// # Sub-packages
//
//   - events: async event dispatch to an EventPublisher
//   - flows: pure-function orchestrators for every Engine operation
//   - limiters: login and second-factor attempt limiters
//   - rate: windowed counters on Redis or go-cache
//   - security: posture report derived from a Config
//   - stores: ephemeral key-value backends, session tracker and setup staging
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
package internal
