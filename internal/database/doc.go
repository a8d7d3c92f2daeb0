// Package database manages the SQL connection pool behind the draft
// persistence backend.
//
// It wraps a gorm.DB with pool sizing, a periodic health check, and
// transaction helpers with retry for transient failures.
package database
