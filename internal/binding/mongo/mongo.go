// Package mongo provides a MongoDB binding store. Each binding is one
// document keyed by "<tenant>/<implementation>".
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"switchboard/internal/api"
	"switchboard/internal/binding"
)

// Store is a MongoDB implementation of binding.Store.
type Store struct {
	collection *mongo.Collection
	// client is set when the store owns the connection.
	client *mongo.Client
}

var _ binding.Store = (*Store)(nil)

// bindingDocument is the MongoDB representation of a binding.
type bindingDocument struct {
	Key                      string         `bson:"_id"`
	TenantID                 string         `bson:"tenant_id"`
	Implementation           string         `bson:"implementation"`
	PublicConfig             map[string]any `bson:"public_config,omitempty"`
	EncryptedSensitiveConfig string         `bson:"encrypted_sensitive_config,omitempty"`
	DisabledOperations       []string       `bson:"disabled_operations,omitempty"`
	Enabled                  bool           `bson:"enabled"`
	CreatedAt                time.Time      `bson:"created_at"`
	UpdatedAt                time.Time      `bson:"updated_at"`
}

// New creates a store over an existing collection.
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Connect dials uri, pings the server and returns a store that closes the
// client on Close.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	s := New(client.Database(database).Collection(collection))
	s.client = client
	return s, nil
}

func (s *Store) GetBinding(ctx context.Context, tenantID, implementation string) (*api.Binding, error) {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return nil, err
	}
	var doc bindingDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": api.BindingKey(tenantID, implementation)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, api.NewBindingNotFoundError(tenantID, implementation)
		}
		return nil, fmt.Errorf("mongodb get binding %q: %w", api.BindingKey(tenantID, implementation), err)
	}
	return fromDocument(&doc), nil
}

func (s *Store) ListEnabledImplementations(ctx context.Context, tenantID string) ([]string, error) {
	if err := api.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	cursor, err := s.collection.Find(ctx,
		bson.M{"tenant_id": tenantID, "enabled": true},
		options.Find().SetProjection(bson.M{"implementation": 1}).SetSort(bson.D{{Key: "implementation", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongodb list enabled implementations: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []bindingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list enabled implementations decode: %w", err)
	}

	names := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.Implementation
	}
	return names, nil
}

func (s *Store) SaveBinding(ctx context.Context, b *api.Binding) error {
	if b == nil {
		return fmt.Errorf("binding requires tenant and implementation")
	}
	if err := api.ValidateBindingKey(b.TenantID, b.Implementation); err != nil {
		return err
	}

	doc := toDocument(b)
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc.UpdatedAt = now

	var existing bindingDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": doc.Key}).Decode(&existing)
	switch {
	case err == nil && !existing.CreatedAt.IsZero():
		doc.CreatedAt = existing.CreatedAt
	case err != nil && !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("mongodb save binding %q: %w", doc.Key, err)
	case doc.CreatedAt.IsZero():
		doc.CreatedAt = now
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("mongodb save binding %q: %w", doc.Key, err)
	}
	return nil
}

func (s *Store) DeleteBinding(ctx context.Context, tenantID, implementation string) error {
	if err := api.ValidateBindingKey(tenantID, implementation); err != nil {
		return err
	}
	key := api.BindingKey(tenantID, implementation)
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("mongodb delete binding %q: %w", key, err)
	}
	if result.DeletedCount == 0 {
		return api.NewBindingNotFoundError(tenantID, implementation)
	}
	return nil
}

func (s *Store) ListBindings(ctx context.Context, tenantID string) ([]*api.Binding, error) {
	if tenantID != "" {
		if err := api.ValidateTenantID(tenantID); err != nil {
			return nil, err
		}
	}
	filter := bson.M{}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}

	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "tenant_id", Value: 1}, {Key: "implementation", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongodb list bindings: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []bindingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list bindings decode: %w", err)
	}

	out := make([]*api.Binding, len(docs))
	for i := range docs {
		out[i] = fromDocument(&docs[i])
	}
	return out, nil
}

// Close disconnects the client when the store owns it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func toDocument(b *api.Binding) *bindingDocument {
	return &bindingDocument{
		Key:                      b.Key(),
		TenantID:                 b.TenantID,
		Implementation:           b.Implementation,
		PublicConfig:             b.PublicConfig,
		EncryptedSensitiveConfig: b.EncryptedSensitiveConfig,
		DisabledOperations:       b.DisabledOperations,
		Enabled:                  b.Enabled,
		CreatedAt:                b.CreatedAt,
		UpdatedAt:                b.UpdatedAt,
	}
}

func fromDocument(doc *bindingDocument) *api.Binding {
	return &api.Binding{
		TenantID:                 doc.TenantID,
		Implementation:           doc.Implementation,
		PublicConfig:             normalize(doc.PublicConfig),
		EncryptedSensitiveConfig: doc.EncryptedSensitiveConfig,
		DisabledOperations:       doc.DisabledOperations,
		Enabled:                  doc.Enabled,
		CreatedAt:                doc.CreatedAt.UTC(),
		UpdatedAt:                doc.UpdatedAt.UTC(),
	}
}

// normalize converts the BSON container types the driver decodes into
// interface values back to plain maps and slices.
func normalize(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch typed := v.(type) {
	case bson.D:
		m := make(map[string]any, len(typed))
		for _, e := range typed {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.M:
		return normalize(typed)
	case map[string]any:
		return normalize(typed)
	case bson.A:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
