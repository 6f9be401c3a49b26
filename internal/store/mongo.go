package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

const (
	tenantRole = "dbOwner"

	// returned by createUser when the account is already present
	codeUserAlreadyExists = 51003
)

// MongoStore implements DocumentStore on a MongoDB deployment
type MongoStore struct {
	client    *mongo.Client
	databases sync.Map // tenant id -> *mongo.Database
	logger    *zap.Logger
}

// NewMongoStore connects to uri and verifies the primary is reachable
func NewMongoStore(ctx context.Context, uri string, connectTimeout time.Duration, logger *zap.Logger) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	return &MongoStore{
		client: client,
		logger: logger,
	}, nil
}

func (s *MongoStore) database(tenantID string) *mongo.Database {
	if db, ok := s.databases.Load(tenantID); ok {
		return db.(*mongo.Database)
	}
	db, _ := s.databases.LoadOrStore(tenantID, s.client.Database(tenantID))
	return db.(*mongo.Database)
}

// EnsureTenantDatabase creates the tenant account with dbOwner on its
// database. An existing account has its password and roles reset.
func (s *MongoStore) EnsureTenantDatabase(ctx context.Context, tenantID, username, secret string) error {
	db := s.database(tenantID)
	roles := bson.A{bson.D{{Key: "role", Value: tenantRole}, {Key: "db", Value: tenantID}}}

	err := db.RunCommand(ctx, bson.D{
		{Key: "createUser", Value: username},
		{Key: "pwd", Value: secret},
		{Key: "roles", Value: roles},
	}).Err()
	if err == nil {
		s.logger.Info("Created tenant account",
			zap.String("tenant_id", tenantID),
			zap.String("username", username))
		return nil
	}

	var serverErr mongo.ServerError
	if !errors.As(err, &serverErr) || !serverErr.HasErrorCode(codeUserAlreadyExists) {
		return fmt.Errorf("failed to create tenant account: %w", err)
	}

	s.logger.Warn("Tenant account already exists, updating",
		zap.String("tenant_id", tenantID),
		zap.String("username", username))

	err = db.RunCommand(ctx, bson.D{
		{Key: "updateUser", Value: username},
		{Key: "pwd", Value: secret},
		{Key: "roles", Value: roles},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update tenant account: %w", err)
	}
	return nil
}

// InsertOne stores a single document, generating its _id when absent
func (s *MongoStore) InsertOne(ctx context.Context, handle model.TenantHandle, doc model.Record) (string, error) {
	summary, err := s.InsertMany(ctx, handle, []model.Record{doc})
	if err != nil {
		return "", err
	}
	return summary.InsertedIDs[0], nil
}

// InsertMany stores docs in order
func (s *MongoStore) InsertMany(ctx context.Context, handle model.TenantHandle, docs []model.Record) (*model.InsertSummary, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyBatch
	}

	documents := make([]interface{}, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		d := toBSONDoc(doc)
		id, ok := doc.Get(IDField)
		if !ok {
			oid := bson.NewObjectID()
			d = append(bson.D{{Key: IDField, Value: oid}}, d...)
			id = oid
		}
		documents[i] = d
		ids[i] = formatID(id)
	}

	collection := s.database(handle.TenantID).Collection(handle.Collection)
	result, err := collection.InsertMany(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("failed to insert documents: %w", err)
	}

	return &model.InsertSummary{
		InsertedCount: len(result.InsertedIDs),
		InsertedIDs:   ids,
	}, nil
}

// FindOne returns the first document matching filter by equality
func (s *MongoStore) FindOne(ctx context.Context, handle model.TenantHandle, filter model.Record) (model.Record, bool, error) {
	collection := s.database(handle.TenantID).Collection(handle.Collection)

	var raw bson.D
	err := collection.FindOne(ctx, toBSONDoc(filter)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find document: %w", err)
	}

	return fromBSONDoc(raw), true, nil
}

// Ping checks the primary is reachable
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toBSONDoc(r model.Record) bson.D {
	doc := make(bson.D, 0, len(r))
	for _, f := range r {
		doc = append(doc, bson.E{Key: f.Key, Value: toBSONValue(f.Value)})
	}
	return doc
}

func toBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case model.Record:
		return toBSONDoc(val)
	case []interface{}:
		arr := make(bson.A, len(val))
		for i, item := range val {
			arr[i] = toBSONValue(item)
		}
		return arr
	default:
		return v
	}
}

func fromBSONDoc(d bson.D) model.Record {
	r := make(model.Record, 0, len(d))
	for _, e := range d {
		r = append(r, model.Field{Key: e.Key, Value: fromBSONValue(e.Value)})
	}
	return r
}

func fromBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.Decimal128:
		return val.String()
	case bson.Binary:
		return val.Data
	case bson.D:
		return fromBSONDoc(val)
	case bson.M:
		r := make(model.Record, 0, len(val))
		for k, item := range val {
			r = append(r, model.Field{Key: k, Value: fromBSONValue(item)})
		}
		return r
	case bson.A:
		arr := make([]interface{}, len(val))
		for i, item := range val {
			arr[i] = fromBSONValue(item)
		}
		return arr
	default:
		return v
	}
}

func formatID(id interface{}) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
