// Package tally maintains two independent numeric ledgers per subject,
// a currency balance and an experience score, backed by a durable store
// and fronted by a fast integer cache.
//
// Tally is designed as a library, not a service. The chat or HTTP layer
// that receives user actions is "the caller": it invokes the four ledger
// primitives (Add, Remove, Set, Read) plus the reward events
// (RegisterActivity, Daily) and decides how to present the results.
//
// # Quick Start
//
// Create a Ledger with your preferred store and cache:
//
//	import (
//	    "github.com/kyomi-dev/tally"
//	    "github.com/kyomi-dev/tally/store/postgres"
//	    badgercache "github.com/kyomi-dev/tally/cache/badger"
//	)
//
//	s := postgres.New(db)
//	c, err := badgercache.Open(badgercache.DefaultConfig("/var/lib/tally"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := tally.New(s, c)
//
//	// Start migrates the store and warms the cache. Serve no reads
//	// before it returns.
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Consistency model
//
// Every write goes to the durable store first and to the cache second, so
// the cache can lag durable state but never lead it. Reads are served
// from the cache only. On startup the warm-up protocol copies every
// durable row into the cache with a conditional set, which never
// overwrites a value a concurrent write already placed there. The cache
// is a rebuildable projection: losing it entirely costs one warm-up.
//
// Concurrent mutations on the same subject are safe because both layers
// apply relative updates atomically. The Ledger itself never performs a
// read-modify-write on the hot path.
//
// # Experience and levels
//
// RegisterActivity is gated by a per-subject fixed-window rate limiter
// and draws a random experience amount per permitted event. The curve
// package maps cumulative experience to a level; when a grant crosses a
// level boundary the Ledger emits a level-up hook with the old and new
// level, and the caller decides how to notify.
//
// # Deployment note
//
// The rate limiter is process-local. Running more than one instance
// against the same store relaxes the grants-per-window bound to
// per-instance; a multi-instance deployment needs the cooldown state
// moved into a shared layer.
package tally
