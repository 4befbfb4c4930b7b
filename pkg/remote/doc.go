// Package remote defines the RemoteStore collaborator consumed by the sync
// queue, plus an HTTP JSON implementation. Errors are classified as
// transient (retried by the queue) or terminal (operation abandoned).
package remote
