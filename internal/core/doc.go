// Package core turns batches of raw order-item rows into clean canonical
// records and rejected rows with reasons.
//
// Nothing here touches a file, socket or database directly. Sources hand in
// []RawRow and a [Store] receives the results, so the same pipeline serves
// the CLI, the HTTP intake server and the tests.
//
// # Pipeline
//
// [Ingester.Run] drives one batch:
//
//  1. [ResolveDuplicates] drops exact duplicates and flags rows that share an
//     (order_id, item_sku) key with a different row
//  2. [Canonicalize] parses every field of the survivors
//  3. [Validate] applies the business rules and collects every violation
//  4. Rows with no reasons become [CanonicalRecord]s; the rest become
//     [RejectedRow]s carrying the raw row as JSON
//  5. The staging snapshot, clean records and rejected rows are written in
//     one transaction through [Store.WithTx]
//
// [Stats] always reconciles: Read equals dropped exact duplicates plus clean
// plus rejected.
//
// # Field parsing
//
// The parsers in convert.go ([ParseDate], [NormalizePhone], [ParseQuantity],
// [ParsePrice], [DetectCurrency]) never return errors. An unreadable value
// comes back with Valid=false and the validator turns that into a reason.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - DB001-DB004: storage errors
//   - FILE001-FILE004: upload and CSV errors
//   - BATCH001-BATCH004: batch lifecycle errors
//
// Rejection reasons have their own codes through [ReasonCode].
//
// # Concurrency
//
// [Processor] canonicalizes rows on a bounded worker group; results keep
// input order. [BatchLimiter] caps how many batches run at once.
package core
