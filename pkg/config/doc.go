// Package config loads configuration structs from environment variables
// and an optional .env file.
//
// Store adapters declare their settings as structs with `env:` tags (see
// dynamo.Config, redis.Config, pg.Config) and the hosting application
// loads them at startup:
//
//	var cfg dynamo.Config
//	config.MustLoad(&cfg)
//
// Credentials, regions, and table names always arrive through here or the
// ambient environment; nothing is hardcoded in the engine or adapters.
package config
