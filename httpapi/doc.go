// Package httpapi serves the REST API: the /auth flows backed by the auth
// engine, and the invoice, feedback, notification and user resources backed
// by the SQLite store. The refresh credential travels only in an httpOnly
// cookie scoped to /auth; clients never read it.
package httpapi
