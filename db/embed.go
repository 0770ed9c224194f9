// Package db provides the embedded database schema and the demo catalog.
package db

import _ "embed"

// Schema contains the DDL statements for the node table.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the demo product catalog as a JSON array of product records.
//
//go:embed seed/products.json
var SeedProducts []byte
