// Package events implements fire-and-forget delivery of domain events.
//
// # Components
//
//   - [Event] is the notification model (name, user, time, string payload).
//   - [Publisher] is the delivery interface implemented by package eventpub.
//   - [Dispatcher] is a buffered async relay with drop-if-full or
//     block-until-space semantics.
//
// # What this package must NOT do
//
//   - Decide which events to emit. That belongs to the engine.
//   - Return publish failures to callers.
//   - Import authcore or any sibling internal package.
package events
