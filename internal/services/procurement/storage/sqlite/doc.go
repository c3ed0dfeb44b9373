// Package sqlite provides the default SQLite-backed procurement store.
//
// Transactions begin IMMEDIATE, so concurrent acceptances on one database
// file queue behind each other and the unique index on orders.rfq_id stays
// the final arbiter.
package sqlite
