// Package models holds the gorm table mappings for the mirror store and the
// job queue. Domain types in internal/domain stay free of gorm tags; each model
// carries its own ToDomain and FromDomain mappers.
//
// Production tables come from the SQL files in /migrations; sqlite tests use
// AutoMigrate, so column tags must agree with those files.
package models
