// Package repositories implements SQLite persistence for linked accounts.
//
// [UserRepository] stores one row per external user identity. It doubles as the
// credential store used by the token lifecycle manager: [UserRepository.FindByExternalID]
// and [UserRepository.Upsert] read and write the access token, refresh token and
// expiry carried by each account.
//
// Upsert is last-writer-wins per external id and never clears a stored refresh
// token or display field with an empty value.
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
