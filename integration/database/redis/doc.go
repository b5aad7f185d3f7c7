// Package redis provides a Redis-backed implementation of the session
// store contract.
//
// Payloads are stored under "session:<key>" with a Redis-side expiry, and a
// sorted set scored by expiry timestamp ("session:expiry") backs the
// expired-record scan. Redis evicts expired values on its own; the
// reclamation sweep additionally clears stale index entries.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redis.NewStore(client)
package redis
