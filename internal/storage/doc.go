package storage

// Package storage persists tasks and users behind the Store interface.
//
// Two backends are provided:
//   - SQLite (default): a single database file, WAL mode
//   - PostgreSQL: pgx pool, for installations that already run one
//
// The store is the only serialization point between the intake pipeline
// and the reminder scheduler; their write sets are disjoint per task
// (intake writes event_id once, the scheduler writes reminded once).
