// Package types holds value types shared by repositories and entities:
// record status filters, the soft-delete capability, paging and JSON columns.
package types
