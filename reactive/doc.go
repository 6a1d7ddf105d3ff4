// Package reactive implements a Reactive Streams-style prefetch operator: a
// one-in-one-out stage that interposes a bounded queue between an upstream
// Publisher and a downstream Subscriber, decoupling upstream demand from
// downstream demand by a fixed prefetch window.
//
// The package only consumes three external collaborators: a queue factory, an
// upstream Subscription, and a downstream Subscriber. Schedulers, assembly,
// and retry/transformation semantics live outside this package.
package reactive
