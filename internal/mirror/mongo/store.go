package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/krazyTry/meteora-graduator/internal/mirror"
)

const collectionName = "fund_data"

// Store keeps the pool mirror in a MongoDB collection, one document per pool.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if database == "" {
		database = "graduator"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return &Store{client: client, coll: client.Database(database).Collection(collectionName)}, nil
}

// EnsureIndexes creates the unique pool index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "bondingCurvePool", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ListPools(ctx context.Context) ([]mirror.FundData, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "bondingCurvePool", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []mirror.FundData
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, pool string) (*mirror.FundData, error) {
	var f mirror.FundData
	err := s.coll.FindOne(ctx, bson.M{"bondingCurvePool": pool}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mirror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) Upsert(ctx context.Context, data mirror.FundData) error {
	state := data.State
	if state == "" {
		state = mirror.StateTrading
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if data.BaseMint != "" {
		set["baseMint"] = data.BaseMint
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"bondingCurvePool": data.BondingCurvePool},
		bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"state": state, "attempts": 0},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// unsettled matches a pool whose DammV2Pool has not been recorded.
func unsettled(pool string) bson.M {
	return bson.M{
		"bondingCurvePool": pool,
		"$or": bson.A{
			bson.M{"dammV2Pool": bson.M{"$exists": false}},
			bson.M{"dammV2Pool": ""},
		},
	}
}

func (s *Store) SaveProgress(ctx context.Context, pool string, p mirror.Progress) error {
	set := bson.M{
		"state":     p.State,
		"attempts":  p.Attempts,
		"lastError": p.LastError,
		"lastStep":  p.LastStep,
		"updatedAt": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if p.NextAttemptAt != nil {
		set["nextAttemptAt"] = p.NextAttemptAt.UTC()
	} else {
		update["$unset"] = bson.M{"nextAttemptAt": ""}
	}
	if p.MetadataSignature != "" {
		set["metadataSignature"] = p.MetadataSignature
	}
	if p.MigrationSignature != "" {
		set["migrationSignature"] = p.MigrationSignature
	}

	res, err := s.coll.UpdateOne(ctx, unsettled(pool), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetMigrated(ctx context.Context, pool, dammV2Pool string, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, unsettled(pool), bson.M{
		"$set": bson.M{
			"dammV2Pool": dammV2Pool,
			"migratedAt": at.UTC(),
			"state":      mirror.StateSettled,
			"lastError":  "",
			"updatedAt":  time.Now().UTC(),
		},
		"$unset": bson.M{"nextAttemptAt": ""},
	})
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, pool); err != nil {
		return false, err
	}
	return false, nil
}

var _ mirror.Store = (*Store)(nil)
