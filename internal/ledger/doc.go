// Package ledger implements the append-only wave log.
//
// A Wave is immutable once appended: the ledger never mutates or removes
// a record, and the count always equals the number of stored records.
// Reads return copies, never handles into internal storage.
//
// Three implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and development.
//   - PebbleLedger: durable single-node storage, the default backend.
//   - PostgresLedger: durable, for deployments that already run Postgres.
package ledger
