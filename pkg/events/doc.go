/*
Package events provides the in-memory broker for Grove's progress events.

The Coordinator publishes streak milestones, decay tier changes, level-ups,
all-daily bonuses, and abandoned sync operations; UI, notification, and
analytics collaborators subscribe. Publishing is non-blocking: a subscriber
whose buffer is full misses the event rather than stalling the core.
*/
package events
