// Package platform defines the port through which the replication core talks
// to a shop's remote catalog. The adapter lives in infrastructure/shopify.
package platform
