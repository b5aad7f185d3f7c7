// Package dynamo provides a DynamoDB-backed implementation of the session
// store contract.
//
// Records are items keyed by session_key, with the serialized payload in
// session_value and a numeric session_expiry backed by a keys-only global
// secondary index for expired-record scans. EnsureTable provisions the
// table and index on first use and waits for readiness on a bounded poll.
//
//	store, err := dynamo.New(ctx, dynamo.Config{
//		Table:  "wc_sessions",
//		Region: "eu-west-1",
//	})
//	if err != nil {
//		return err
//	}
//	if err := store.EnsureTable(ctx); err != nil {
//		log.Warn("session table not ready", logger.Error(err)) // non-fatal
//	}
//
// Point DynamoDB Local or a compatible service at the store through
// Config.Endpoint.
package dynamo
