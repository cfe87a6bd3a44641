// Package repository provides generic, soft-delete aware repositories built
// on Bun. Reads go straight to the database; writes are staged on a Session
// and flushed by its owner.
package repository
