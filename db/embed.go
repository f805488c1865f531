// Package db provides the embedded database schema and seed catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Products is the seed catalog: a JSON array of products in the API shape.
//
//go:embed seed/products.json
var Products []byte
