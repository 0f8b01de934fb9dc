// Package session is the client's single source of truth for who is logged
// in.
//
// # Overview
//
// Store holds the authenticated identity and the access/refresh token pair,
// mirrors them to durable storage (see Persister), and drives the session
// lifecycle:
//
//	Uninitialized -> Restoring -> Active | Anonymous
//	Active  -> Refreshing -> Active | Anonymous
//	any     -> Anonymous (Logout, unrecoverable refresh failure)
//
// # Refresh
//
// While a session is active one refresh timer is armed for expiry minus the
// refresh margin (immediately when less than the margin remains) and a
// fallback check runs on a fixed cadence in case the timer was missed, for
// example after the host slept. Every trigger (timer, fallback, a 401 seen
// by the gateway) goes through Store.Refresh, which shares a single
// in-flight call between all callers.
//
// Transitions that replace or destroy the session bump a generation counter.
// A refresh that started under an older generation is discarded when it
// lands, so Logout always wins over an in-flight refresh.
//
// # Notifications
//
// Consumers Subscribe to EventEstablished, EventRefreshed and EventCleared.
// The store never navigates; routing after login is the consumer's job.
package session
