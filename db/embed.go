// Package db embeds the schema applied on startup.
package db

import _ "embed"

// Schema holds the DDL for customers, inventory, orders and their status
// history. Every statement uses IF NOT EXISTS so applying it is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
