package repository

import (
	"context"
	"errors"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
)

// NewCassandraStore builds every repository on one shared client.
func NewCassandraStore(client *cassandra.Client) *Store {
	return &Store{
		Participants:  NewCassandraParticipantRepository(client),
		Conversations: NewCassandraConversationRepository(client),
		Messages:      NewCassandraMessageRepository(client),
		Feed:          NewCassandraFeedRepository(client),
		Registry:      NewCassandraRegistryRepository(client),
	}
}

func cql(id uuid.UUID) gocql.UUID {
	return gocql.UUID(id)
}

// listPage reads one driver page of stmt. Rows beyond q.Limit in the page
// are not returned.
func listPage[T any](
	ctx context.Context,
	client *cassandra.Client,
	q ListQuery,
	stmt string,
	args []interface{},
	scan func(gocql.Scanner) (T, error),
) (Page[T], error) {
	query, err := client.Query(ctx, stmt, args...)
	if err != nil {
		return Page[T]{}, err
	}
	if q.Limit > 0 {
		query = query.PageSize(q.Limit)
	}

	// Setting the page state, even an empty one, disables auto paging.
	iter := query.PageState(q.PageState).Iter()
	next := iter.PageState()

	var items []T
	scanner := iter.Scanner()
	for scanner.Next() {
		item, err := scan(scanner)
		if err != nil {
			_ = iter.Close()
			return Page[T]{}, err
		}
		items = append(items, item)
		if q.Limit > 0 && len(items) == q.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return Page[T]{}, cassandra.Wrap("select", err)
	}

	return Page[T]{Items: items, NextPageState: next}, nil
}

func count(ctx context.Context, client *cassandra.Client, stmt string, args ...interface{}) (int64, error) {
	q, err := client.Query(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := q.Scan(&n); err != nil {
		return 0, cassandra.Wrap("count", err)
	}
	return n, nil
}

// scanOne runs a single-row query. A missing row yields ErrNotFound.
func scanOne(ctx context.Context, client *cassandra.Client, stmt string, args []interface{}, dest ...interface{}) error {
	q, err := client.Query(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if err := q.Scan(dest...); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return ErrNotFound
		}
		return cassandra.Wrap("select", err)
	}
	return nil
}

// insertIfNotExists runs a lightweight-transaction insert. When the row
// already exists, column holds the stored value of that column.
func insertIfNotExists(ctx context.Context, client *cassandra.Client, stmt string, args []interface{}, column string) (applied bool, existing uuid.UUID, err error) {
	q, err := client.Query(ctx, stmt, args...)
	if err != nil {
		return false, uuid.Nil, err
	}

	row := map[string]interface{}{}
	applied, err = q.MapScanCAS(row)
	if err != nil {
		return false, uuid.Nil, cassandra.Wrap("insert", err)
	}
	if applied {
		return true, uuid.Nil, nil
	}

	owner, ok := row[column].(gocql.UUID)
	if !ok {
		return false, uuid.Nil, cassandra.Wrap("insert", errors.New("conditional insert returned no "+column))
	}
	return false, uuid.UUID(owner), nil
}
