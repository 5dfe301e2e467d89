// Package mongostore implements storage.Adapter on MongoDB. Identifiers are
// ObjectIDs; records come back as plain Go maps and slices with dates as
// time.Time and binary data as []byte.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// Store is a storage.Adapter over one MongoDB database
type Store struct {
	client *mongo.Client // nil when the database was handed to New
	db     *mongo.Database
	logger *zap.Logger
}

var _ storage.Adapter = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Connect dials uri and returns a Store on database. Close disconnects the
// client.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach mongodb: %w", err)
	}
	s := New(client.Database(database), opts...)
	s.client = client
	s.logger.Debug("connected to mongodb", zap.String("database", database))
	return s, nil
}

// New returns a Store on an existing database handle. Close leaves the
// client connected.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Save inserts values under a new ObjectID when id is nil and replaces (or
// inserts) the record with the given id otherwise
func (s *Store) Save(ctx context.Context, collection string, id any, values types.Record) (any, error) {
	doc := make(bson.M, len(values)+1)
	for k, v := range values {
		doc[k] = encodeValue(v)
	}

	if id == nil {
		oid := primitive.NewObjectID()
		doc[types.IDField] = oid
		if _, err := s.coll(collection).InsertOne(ctx, doc); err != nil {
			return nil, mapError(err)
		}
		return oid, nil
	}

	key := toObjectID(id)
	doc[types.IDField] = key
	_, err := s.coll(collection).ReplaceOne(ctx, bson.M{types.IDField: key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, mapError(err)
	}
	return key, nil
}

// Delete removes the record with the given id
func (s *Store) Delete(ctx context.Context, collection string, id any) (int, error) {
	res, err := s.coll(collection).DeleteOne(ctx, bson.M{types.IDField: toObjectID(id)})
	if err != nil {
		return 0, mapError(err)
	}
	return int(res.DeletedCount), nil
}

// DeleteOne removes the first record matching query
func (s *Store) DeleteOne(ctx context.Context, collection string, query types.Query) (int, error) {
	res, err := s.coll(collection).DeleteOne(ctx, Filter(query))
	if err != nil {
		return 0, mapError(err)
	}
	return int(res.DeletedCount), nil
}

// DeleteMany removes every record matching query
func (s *Store) DeleteMany(ctx context.Context, collection string, query types.Query) (int, error) {
	res, err := s.coll(collection).DeleteMany(ctx, Filter(query))
	if err != nil {
		return 0, mapError(err)
	}
	return int(res.DeletedCount), nil
}

// FindOne returns the first matching record, or nil
func (s *Store) FindOne(ctx context.Context, collection string, query types.Query) (types.Record, error) {
	var raw bson.M
	err := s.coll(collection).FindOne(ctx, Filter(query)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return Normalize(raw), nil
}

// Find returns the matching records, sorted and windowed by opts
func (s *Store) Find(ctx context.Context, collection string, query types.Query, opts types.FindOptions) ([]types.Record, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		sort := make(bson.D, 0, len(opts.Sort))
		for _, f := range opts.Sort {
			dir := 1
			if f.Descending {
				dir = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.coll(collection).Find(ctx, Filter(query), findOpts)
	if err != nil {
		return nil, mapError(err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, mapError(err)
	}
	out := make([]types.Record, len(raw))
	for i, r := range raw {
		out[i] = Normalize(r)
	}
	return out, nil
}

// FindOneAndUpdate sets values on the first matching record and returns it
// after the update
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, query types.Query, values types.Record, opts types.UpdateOptions) (types.Record, error) {
	set := make(bson.M, len(values))
	for k, v := range values {
		if k == types.IDField {
			continue
		}
		set[k] = encodeValue(v)
	}
	if len(set) == 0 {
		return s.FindOne(ctx, collection, query)
	}

	updateOpts := options.FindOneAndUpdate().
		SetUpsert(opts.Upsert).
		SetReturnDocument(options.After)
	var raw bson.M
	err := s.coll(collection).FindOneAndUpdate(ctx, Filter(query), bson.M{"$set": set}, updateOpts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return Normalize(raw), nil
}

// FindOneAndDelete removes the first matching record
func (s *Store) FindOneAndDelete(ctx context.Context, collection string, query types.Query) (int, error) {
	err := s.coll(collection).FindOneAndDelete(ctx, Filter(query)).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, mapError(err)
	}
	return 1, nil
}

// Count returns the number of matching records
func (s *Store) Count(ctx context.Context, collection string, query types.Query) (int, error) {
	n, err := s.coll(collection).CountDocuments(ctx, Filter(query))
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

// CreateIndex creates an ascending sparse index on field
func (s *Store) CreateIndex(ctx context.Context, collection, field string, opts types.IndexOptions) error {
	if field == types.IDField {
		return nil
	}
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetUnique(opts.Unique).SetSparse(true),
	}
	name, err := s.coll(collection).Indexes().CreateOne(ctx, model)
	if err != nil {
		return mapError(err)
	}
	s.logger.Debug("created index",
		zap.String("collection", collection),
		zap.String("index", name),
		zap.Bool("unique", opts.Unique))
	return nil
}

// IsNativeID reports whether v is an ObjectID or its hex form
func (s *Store) IsNativeID(v any) bool {
	switch id := v.(type) {
	case primitive.ObjectID:
		return !id.IsZero()
	case string:
		return primitive.IsValidObjectID(id)
	}
	return false
}

// CanonicalID returns the hex form of an id
func (s *Store) CanonicalID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	}
	return fmt.Sprint(id)
}

// NativeIDType names the identifier type
func (s *Store) NativeIDType() string {
	return "ObjectID"
}

// Collections returns the names of the non-empty collections, sorted
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		n, err := s.coll(name).EstimatedDocumentCount(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		if n > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Indexes returns the single-field index definitions of a collection. The
// implicit _id index is left out.
func (s *Store) Indexes(ctx context.Context, collection string) ([]storage.IndexDefinition, error) {
	cursor, err := s.coll(collection).Indexes().List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, mapError(err)
	}

	var out []storage.IndexDefinition
	for _, spec := range specs {
		keys, ok := Normalize(bson.M{"key": spec["key"]})["key"].(map[string]any)
		if !ok || len(keys) != 1 {
			continue
		}
		for field := range keys {
			if field == types.IDField {
				continue
			}
			unique, _ := spec["unique"].(bool)
			out = append(out, storage.IndexDefinition{Field: field, Unique: unique})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

// ClearCollection removes every record of a collection. Indexes are kept.
func (s *Store) ClearCollection(ctx context.Context, collection string) error {
	if _, err := s.coll(collection).DeleteMany(ctx, bson.M{}); err != nil {
		return mapError(err)
	}
	return nil
}

// DropDatabase drops the whole database
func (s *Store) DropDatabase(ctx context.Context) error {
	if err := s.db.Drop(ctx); err != nil {
		return mapError(err)
	}
	s.logger.Debug("dropped database", zap.String("database", s.db.Name()))
	return nil
}

// Close disconnects the client opened by Connect
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	return client.Disconnect(context.Background())
}

// mapError translates driver errors into storage errors
func mapError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", storage.ErrUniqueViolation, err)
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", storage.ErrClosed, err)
	}
	return err
}
