// Package journal keeps a SQLite ledger of per-file pipeline outcomes.
//
// The journal is an observer sink: the coordinator reports records and the
// journal stores the terminal ones (processed, skipped, failed, indexed) so
// `capturesync history` can show what happened to a file after the fact. The
// journal is never consulted to decide whether a file should be processed.
package journal
