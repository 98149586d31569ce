// Package engine is a storage engine that consults locktx before touching
// chunk or index storage. Every chunk and index operation takes the
// transaction it runs under and is rejected, before any I/O, when the
// transaction's lock state does not grant it.
//
// The engine adds what the pure tracker leaves out: transaction IDs,
// structured logs, Prometheus counters, OpenTelemetry spans and lock events
// published on a syncbus.Bus. It never arbitrates between transactions.
package engine
