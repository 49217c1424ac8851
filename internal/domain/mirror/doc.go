// Package mirror contains the Mirror Store bounded context: shops, the
// replication topology between them and the persisted mapping of source
// products and variants to their target copies.
//
// Design Pattern: Ports & Adapters
//   - Entities and repository ports are defined here
//   - GORM adapters live in infrastructure/persistence
//
// Mirror rows are written only by the replication orchestrator.
package mirror
