// Package core provides the business logic for chemical equipment uploads.
//
// This package is the heart of the application, containing all domain logic
// independent of any UI or transport layer. It can be used by web handlers,
// CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Ingestion: [ParseEquipmentCSV] turns raw CSV bytes into typed
//     [EquipmentRecord] values, failing with [SchemaError] or [ParseError].
//   - Aggregation: [Summarize] computes a [SummaryStatistics] value over any
//     record set. It has no I/O and cannot fail.
//   - Retention: [PruneUploads] keeps the newest N uploads per user and
//     deletes the rest through the [Store].
//   - Service: the entry point used by transports (register, login, upload,
//     query, report data).
//
// # Upload Flow
//
//  1. Client calls [Service.Upload] with an io.Reader
//  2. The reader is wrapped with BOM skipping and UTF-8 validation
//  3. Rows are validated against the required column set
//  4. The batch is created atomically in the store
//  5. Retention pruning runs for the uploading user
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB002-DB007: Database errors (duplicates, connections, deadlocks)
//   - VAL002-VAL004: Validation errors (numbers, required fields, columns)
//   - FILE001-FILE006: File errors (size, format, encoding, extension)
//   - UPL002-UPL005: Upload errors (busy, not found, timeout)
//   - AUTH001-AUTH003: Authentication errors
//   - RATE001: Rate limiting
package core
