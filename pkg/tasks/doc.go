// Package tasks is the repository layer for work items.
//
// Store loads tasks from PostgreSQL; Task carries both the public fields and
// the sensitive ones (owner email, internal notes, audit trail, export
// metadata). Visibility is decided downstream: Ownership feeds the scope
// resolver and Payload feeds the field redaction table.
package tasks
