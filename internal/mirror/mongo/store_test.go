package mongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/krazyTry/meteora-graduator/internal/mirror/mirrortest"
)

func TestStoreContract(t *testing.T) {
	uri := os.Getenv("GRADUATOR_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GRADUATOR_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, uri, "graduator_test")
	require.NoError(t, err)
	defer store.Close(ctx)
	require.NoError(t, store.EnsureIndexes(ctx))

	prefix := fmt.Sprintf("mongotest-%d-", time.Now().UnixNano())
	defer store.coll.DeleteMany(ctx, bson.M{"bondingCurvePool": bson.M{"$regex": "^" + prefix}})

	mirrortest.Run(t, store, prefix)
}

func TestNewStoreRequiresURI(t *testing.T) {
	_, err := NewStore(context.Background(), "", "")
	require.Error(t, err)
}
