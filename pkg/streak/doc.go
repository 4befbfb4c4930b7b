/*
Package streak derives streak state from completion history.

Both functions are pure: they take logical dates from the completion log
and compute from scratch, never from cached counters. This is the single
canonical streak algorithm — snapshot recomputation and milestone detection
both go through Current so they can never disagree.
*/
package streak
