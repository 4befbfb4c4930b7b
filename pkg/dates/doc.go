/*
Package dates provides logical-date normalization.

A LogicalDate is the calendar day a completion counts toward after applying
the post-midnight grace period: a habit completed at 00:45 belongs to the
previous day, one completed at 03:01 belongs to the current day. Everything
downstream (streaks, decay, XP idempotency) reasons in logical dates so
timestamps near midnight never break a streak.

LogicalDate serializes as "YYYY-MM-DD" and supports day arithmetic directly,
which keeps streak scans allocation-free.
*/
package dates
