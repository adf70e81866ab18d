// Package socialgraph reads friendship adjacency from the graph store owned
// by the connections service.
package socialgraph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/bloom/pkg/graph"
	"github.com/Ramsey-B/bloom/pkg/models"
	"github.com/Ramsey-B/bloom/pkg/tracing"
)

// Repository runs read-only Cypher queries over User nodes and FRIEND edges.
type Repository struct {
	client *graph.Client
	logger ectologger.Logger
}

// New creates a new social graph repository
func New(client *graph.Client, logger ectologger.Logger) *Repository {
	return &Repository{client: client, logger: logger}
}

// FriendsOfFriends returns users exactly two hops away, with the number of
// shared friends per user. Direct friends and already-matched ids are
// excluded in the query itself, never post-filtered.
func (r *Repository) FriendsOfFriends(ctx context.Context, userID string, limit int, excludeIDs []string) ([]models.SocialHint, error) {
	ctx, span := tracing.StartSpan(ctx, "socialgraph.Repository.FriendsOfFriends")
	defer span.End()

	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	cypher := `
		MATCH (u:User {id: $user_id})-[:FRIEND]-(f:User)-[:FRIEND]-(fof:User)
		WHERE fof.id <> $user_id
		  AND NOT (u)-[:FRIEND]-(fof)
		  AND NOT fof.id IN $exclude_ids
		RETURN fof.id AS user_id, count(DISTINCT f) AS mutual_count
		ORDER BY mutual_count DESC, user_id ASC
		LIMIT $limit
	`

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"user_id":     userID,
			"exclude_ids": excludeIDs,
			"limit":       limit,
		})
		if err != nil {
			return nil, err
		}

		hints := make([]models.SocialHint, 0, limit)
		for res.Next(ctx) {
			record := res.Record()
			id, _ := record.Get("user_id")
			count, _ := record.Get("mutual_count")

			idStr, ok := id.(string)
			if !ok {
				continue
			}
			countInt, _ := count.(int64)

			hints = append(hints, models.SocialHint{
				UserID:      idStr,
				MutualCount: int(countInt),
			})
		}

		return hints, res.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id": userID,
		}).Error("Failed to query friends of friends")
		return nil, fmt.Errorf("failed to query friends of friends: %w", err)
	}

	return result.([]models.SocialHint), nil
}

// MutualFriends returns the ids of users directly connected to both inputs.
func (r *Repository) MutualFriends(ctx context.Context, userIDA, userIDB string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "socialgraph.Repository.MutualFriends")
	defer span.End()

	cypher := `
		MATCH (a:User {id: $user_id_a})-[:FRIEND]-(m:User)-[:FRIEND]-(b:User {id: $user_id_b})
		RETURN DISTINCT m.id AS user_id
		ORDER BY user_id ASC
	`

	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"user_id_a": userIDA,
			"user_id_b": userIDB,
		})
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0)
		for res.Next(ctx) {
			record := res.Record()
			id, _ := record.Get("user_id")
			if idStr, ok := id.(string); ok {
				ids = append(ids, idStr)
			}
		}

		return ids, res.Err()
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"user_id_a": userIDA,
			"user_id_b": userIDB,
		}).Error("Failed to query mutual friends")
		return nil, fmt.Errorf("failed to query mutual friends: %w", err)
	}

	return result.([]string), nil
}
