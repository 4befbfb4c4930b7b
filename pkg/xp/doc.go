/*
Package xp implements the append-only XP ledger.

Awards come from a fixed table (completion 10, all-daily bonus 50, 7-day
milestone 100, 30-day milestone 500, daily login 5, rewarded ad 50); total
XP is always the sum over the log and level = totalXp/100 + 1. Idempotency
guards operate on logical dates: at most one daily-login award per day, and
rewarded-ad awards are capped per day by the coordinator.
*/
package xp
