// Package tunnel implements podlab's port-forwarding core: a supervised
// group of TCP listeners that bridge each accepted local connection to a
// freshly opened remote pod stream.
//
// The pieces fit together like this:
//
//   - Supervisor runs named tasks under one shared cancellation signal and
//     aggregates their outcomes. Lifecycle tasks (forwarders, the interrupt
//     watcher, the reaper) are fail-fast: one error shuts the group down.
//     Contained tasks (per-connection bridges) may fail without cascading.
//   - Forwarder binds a local address, publishes the real bound address via a
//     one-shot Readiness, and spawns a contained bridge per accepted
//     connection. It never blocks on a bridge completing.
//   - Bridges copy bytes bidirectionally between the local socket and the
//     remote stream obtained from a StreamProvider. Peer resets are a normal
//     way for a connection to end, not failures.
//   - ReaperTask periodically drains completed bridge outcomes so memory does
//     not grow while the listener keeps accepting.
//
// Cancellation is cooperative: every blocking point races the task context,
// and after triggering shutdown the supervisor waits a bounded drain deadline
// before abandoning stragglers.
package tunnel
