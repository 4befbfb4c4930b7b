/*
Package errdefs defines Grove's error taxonomy.

Every error surfaced by the core belongs to one of five classes:

  - Validation: business-rule violations, surfaced synchronously
  - NotFound: referenced entity absent locally
  - LocalStore: durable-storage failure, the action did not happen
  - RemoteTransient: network/timeout, the sync operation retries
  - RemoteTerminal: server-side rejection, the operation is abandoned

Errors are wrapped with %w so classification survives fmt.Errorf chains;
callers use the Is* helpers rather than comparing messages.
*/
package errdefs
