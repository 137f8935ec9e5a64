// Package mysql provides repositories and data access helpers backed by MySQL.
// It encapsulates schema migrations and strongly typed queries for persisting
// conversation sessions and deployment outcomes, plus file-backed memory
// variants used during development and in tests.
package mysql
