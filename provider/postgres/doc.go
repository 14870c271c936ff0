// Package postgres is a ready-made [authcore.UserProvider] backed by a
// Postgres users table, using the pgx stdlib driver and goose migrations.
//
// Identifier lookup matches username or email. Unique-constraint
// violations are translated to [authcore.ErrProviderDuplicateIdentifier]
// and missing rows to [authcore.ErrUserNotFound], the sentinels the engine
// relies on; every other database error surfaces unchanged and is treated
// as transient by the engine.
package postgres
