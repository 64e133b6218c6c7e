// Package profile defines the application-level user record of the
// Habets app: display fields and challenge counters keyed 1:1 by the
// session user id. It is distinct from the identity the auth service
// owns; a session user may legitimately exist without a profile while
// provisioning is in flight or after a partial registration.
//
// The Store interface classifies failures itself (duplicate key, not
// found) so callers match typed errors instead of inspecting driver
// message text. Two implementations are provided: a Postgres store on a
// pgx pool for the hosted project's user_profiles table, and an
// in-memory store for development and tests.
package profile
