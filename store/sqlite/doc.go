// Package sqlite provides SQLite-backed persistence for accounts, apartments,
// invoices, feedback and notifications. The users table implements
// [kogu.UserProvider] so the auth engine can run against it directly.
//
// Timestamps are stored as Unix milliseconds in UTC. Schema changes ship as
// embedded migrations applied on Open.
package sqlite
