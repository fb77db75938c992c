// Package notify delivers transactional mail, most importantly OTP codes for
// email verification and password reset. The production transport is plugged
// in behind the Mailer interface; the package ships a zap-backed mailer for
// development and an in-memory mailbox for tests.
package notify
