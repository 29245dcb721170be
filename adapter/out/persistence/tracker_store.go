// Package persistence implements the repository ports on PostgreSQL via sqlx.
package persistence

import (
	"tracker_server/core/port/out"
	"tracker_server/pkg/crypto"

	"github.com/jmoiron/sqlx"
)

// Store bundles the Postgres adapters. enc may be nil, in which case
// credentials are stored as plain JSON.
type Store struct {
	Integrations *IntegrationAdapter
	Applications *ApplicationAdapter
	Emails       *EmailAdapter
	History      *HistoryAdapter
}

func NewStore(db *sqlx.DB, enc *crypto.Encryptor) *Store {
	return &Store{
		Integrations: NewIntegrationAdapter(db, enc),
		Applications: NewApplicationAdapter(db),
		Emails:       NewEmailAdapter(db),
		History:      NewHistoryAdapter(db),
	}
}

// Ports returns the adapters as repository interfaces.
func (s *Store) Ports() out.Store {
	return out.Store{
		Integrations: s.Integrations,
		Applications: s.Applications,
		Emails:       s.Emails,
		History:      s.History,
	}
}
