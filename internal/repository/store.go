package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Relationships is the startup snapshot the relay builds its caches from.
type Relationships struct {
	// Contacts maps an identity to its mutual contacts.
	Contacts map[string][]string
	// Groups maps a group id to its member identities.
	Groups map[string][]string
}

// Store is the persistence lookup contract consumed at relay startup.
type Store interface {
	LoadRelationships(ctx context.Context) (*Relationships, error)
}

// PostgresStore reads relationship state through two views maintained by the
// HTTP API side: mutual_contacts(username, contact_username) and
// group_members(group_id, username).
type PostgresStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB, log *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: log.With(zap.String("module", "store")),
	}
}

// LoadRelationships loads the full contact and group membership snapshot.
func (s *PostgresStore) LoadRelationships(ctx context.Context) (*Relationships, error) {
	rel := &Relationships{
		Contacts: make(map[string][]string),
		Groups:   make(map[string][]string),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, contact_username FROM mutual_contacts`,
	)
	if err != nil {
		return nil, fmt.Errorf("query mutual contacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var identity, contact string
		if err := rows.Scan(&identity, &contact); err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		rel.Contacts[identity] = append(rel.Contacts[identity], contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact rows: %w", err)
	}

	groupRows, err := s.db.QueryContext(ctx,
		`SELECT group_id, username FROM group_members`,
	)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer groupRows.Close()
	for groupRows.Next() {
		var groupID, member string
		if err := groupRows.Scan(&groupID, &member); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		rel.Groups[groupID] = append(rel.Groups[groupID], member)
	}
	if err := groupRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rows: %w", err)
	}

	s.log.Info("loaded relationship snapshot",
		zap.Int("identities", len(rel.Contacts)),
		zap.Int("groups", len(rel.Groups)),
	)
	return rel, nil
}
