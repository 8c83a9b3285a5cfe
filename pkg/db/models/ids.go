package models

import "github.com/google/uuid"

// ensureID assigns a random UUID when the primary key is still unset. IDs are
// generated in Go so the same models work on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
