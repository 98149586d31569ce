// Package locktx tracks the lock state of a single transaction over a closed
// set of topics and gates chunk and index operations on it.
//
// A Transaction is a value. Lock returns a new Transaction with the topic
// updated, or the original one together with an error. Capabilities are a
// pure function of the current State, so a Transaction that cannot satisfy a
// gate is rejected before any storage I/O happens. Static offers the same
// model with the chunk kind carried in the type, so that illegal chunk
// operations do not compile.
package locktx
