// Package qdrant provides a VectorIndex implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/ports"
	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

// Payload keys stored on every point.
const (
	payloadWorldID    = "world_id"
	payloadEntityType = "entity_type"
	payloadEntityID   = "entity_id"
)

// Repository implements ports.VectorIndex and ports.CollectionManager using
// Qdrant. Points are keyed by graph node ID.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(apiKeyCredentials(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes if they
// don't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	for _, field := range []string{payloadWorldID, payloadEntityType} {
		_, err := r.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: r.collection,
			FieldName:      field,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
			Wait:           pb.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("indexing payload field %s: %w", field, err)
		}
	}

	return nil
}

// DeleteCollection removes the collection and all its data.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// UpsertNodes stores the embeddings of nodes. Nodes without an embedding
// are skipped.
func (r *Repository) UpsertNodes(ctx context.Context, nodes []entities.GraphNode) error {
	points := make([]*pb.PointStruct, 0, len(nodes))
	for i := range nodes {
		if !nodes[i].HasEmbedding() {
			continue
		}
		points = append(points, nodeToPoint(&nodes[i]))
	}
	if len(points) == 0 {
		return nil
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           pb.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// DeleteNodes removes points by node ID.
func (r *Repository) DeleteNodes(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	ids := make([]*pb.PointId, len(nodeIDs))
	for i, id := range nodeIDs {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           pb.PtrOf(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	return nil
}

// DeleteWorld removes every point of a world.
func (r *Repository) DeleteWorld(ctx context.Context, worldID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           pb.PtrOf(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: searchFilter(worldID, nil),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting world points: %w", err)
	}

	return nil
}

// Search returns up to limit node IDs of a world nearest to embedding.
func (r *Repository) Search(ctx context.Context, worldID string, embedding []float32, types []entities.EntityType, limit int) ([]ports.ScoredNode, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter:         searchFilter(worldID, types),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToNodes(resp.Result), nil
}

// CountWorld returns the number of points stored for a world.
func (r *Repository) CountWorld(ctx context.Context, worldID string) (uint64, error) {
	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Filter:         searchFilter(worldID, nil),
		Exact:          pb.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return resp.Result.GetCount(), nil
}

// nodeToPoint converts a graph node to a Qdrant point.
func nodeToPoint(node *entities.GraphNode) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: node.ID},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: node.Embedding},
			},
		},
		Payload: map[string]*pb.Value{
			payloadWorldID:    {Kind: &pb.Value_StringValue{StringValue: node.WorldID}},
			payloadEntityType: {Kind: &pb.Value_StringValue{StringValue: string(node.EntityType)}},
			payloadEntityID:   {Kind: &pb.Value_StringValue{StringValue: node.EntityID}},
		},
	}
}

// searchFilter matches a world's points, optionally restricted to types.
func searchFilter(worldID string, types []entities.EntityType) *pb.Filter {
	filter := &pb.Filter{
		Must: []*pb.Condition{keywordCondition(payloadWorldID, worldID)},
	}
	if len(types) > 0 {
		keywords := make([]string, len(types))
		for i, t := range types {
			keywords[i] = string(t)
		}
		filter.Must = append(filter.Must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: payloadEntityType,
					Match: &pb.Match{
						MatchValue: &pb.Match_Keywords{
							Keywords: &pb.RepeatedStrings{Strings: keywords},
						},
					},
				},
			},
		})
	}
	return filter
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// scoredPointsToNodes converts scored points to index hits.
func scoredPointsToNodes(points []*pb.ScoredPoint) []ports.ScoredNode {
	nodes := make([]ports.ScoredNode, 0, len(points))
	for _, point := range points {
		id := point.GetId().GetUuid()
		if id == "" {
			continue
		}
		nodes = append(nodes, ports.ScoredNode{NodeID: id, Score: float64(point.GetScore())})
	}
	return nodes
}

// apiKeyCredentials sends the Qdrant API key with every RPC.
type apiKeyCredentials string

func (c apiKeyCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"api-key": string(c)}, nil
}

func (c apiKeyCredentials) RequireTransportSecurity() bool {
	return false
}
