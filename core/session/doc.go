// Package session implements a server-side session persistence engine over
// a pluggable key-value store.
//
// A Manager owns the lifecycle of per-request working state: it loads the
// stored record on request start, tracks mutations through a dirty flag,
// persists on response finalize, and deletes on logout. Expired records are
// reclaimed by a batch sweep intended for an out-of-band scheduler (see
// Sweeper for an in-process one).
//
//	store, _ := dynamo.New(ctx, dynamo.Config{Table: "sessions", Region: "eu-west-1"})
//	_ = store.EnsureTable(ctx)
//
//	manager, _ := session.New(store, session.WithTTL(48*time.Hour))
//
//	sess := manager.Load(ctx, key)          // request start
//	total := sess.Get("cart_total", 0.0)    // read with fallback
//	sess.Set("cart_total", 59.99)           // write marks dirty
//	_ = manager.Save(ctx, sess)             // response finalize
//
// Persistence is best-effort by design: a backend outage degrades sessions
// to per-request-only state. Load failures yield an empty session, save
// failures leave the dirty flag set for retry, and the sweep tolerates
// partial failures. All degradations are reported through the configured
// slog logger, never raised to the hosting framework.
//
// Every record's expiry is forced through one normalization rule,
// NormalizeExpiry, before any read or write takes effect: a missing,
// corrupt, or non-positive expiry is healed to now+TTL and the healed value
// is persisted on the next save.
//
// The Store interface is the full contract the engine requires from a
// backend. Production adapters live under integration/database; MemoryStore
// is provided here for tests and per-process fallback.
package session
