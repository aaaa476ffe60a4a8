package repository

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
)

// CassandraRegistryRepository stores compact -> wide id claims in
// id_registry.
type CassandraRegistryRepository struct {
	client *cassandra.Client
}

func NewCassandraRegistryRepository(client *cassandra.Client) *CassandraRegistryRepository {
	return &CassandraRegistryRepository{client: client}
}

func (r *CassandraRegistryRepository) Lookup(ctx context.Context, kind string, compact int64) (uuid.UUID, bool, error) {
	var wide gocql.UUID
	err := scanOne(ctx, r.client,
		`SELECT wide_id FROM id_registry WHERE kind = ? AND compact_id = ?`,
		[]interface{}{kind, compact}, &wide)
	if err == ErrNotFound {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return uuid.UUID(wide), true, nil
}

func (r *CassandraRegistryRepository) Register(ctx context.Context, kind string, compact int64, wide uuid.UUID) (uuid.UUID, error) {
	applied, owner, err := insertIfNotExists(ctx, r.client,
		`INSERT INTO id_registry (kind, compact_id, wide_id, created_at) VALUES (?, ?, ?, ?) IF NOT EXISTS`,
		[]interface{}{kind, compact, cql(wide), time.Now().UTC()}, "wide_id")
	if err != nil {
		return uuid.Nil, err
	}
	if applied {
		return wide, nil
	}
	return owner, nil
}

// Release deletes the claim only while wide still owns it.
func (r *CassandraRegistryRepository) Release(ctx context.Context, kind string, compact int64, wide uuid.UUID) error {
	q, err := r.client.Query(ctx,
		`DELETE FROM id_registry WHERE kind = ? AND compact_id = ? IF wide_id = ?`,
		kind, compact, cql(wide))
	if err != nil {
		return err
	}
	if _, err := q.MapScanCAS(map[string]interface{}{}); err != nil {
		return cassandra.Wrap("delete", err)
	}
	return nil
}
