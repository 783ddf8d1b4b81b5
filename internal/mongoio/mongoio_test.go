package mongoio

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/zeusync/configurator/internal/core/events"
	"github.com/zeusync/configurator/internal/core/observability/log"
	"github.com/zeusync/configurator/internal/core/observability/metrics"
)

func TestDropPolicy(t *testing.T) {
	local := DropPolicy{Enabled: true, BuiltAt: "Local", ConnectionFromDefault: true}
	assert.NoError(t, local.check())

	cases := map[string]struct {
		policy DropPolicy
		want   error
	}{
		"disabled":        {DropPolicy{BuiltAt: "Local", ConnectionFromDefault: true}, errDropDisabled},
		"container build": {DropPolicy{Enabled: true, BuiltAt: "2024-01-01", ConnectionFromDefault: true}, errDropNotLocal},
		"configured uri":  {DropPolicy{Enabled: true, BuiltAt: "Local"}, errDropConnection},
	}
	for name, tc := range cases {
		assert.ErrorIs(t, tc.policy.check(), tc.want, name)
	}
}

func TestConnectFailureIsDatabaseError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Connect(ctx, Options{URI: "mongodb://127.0.0.1:1", Database: "test"}, log.NewNop(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrDatabase))
	assert.Equal(t, "CONNECTION", events.Capture(err).Type)
}

// connectLive connects to MONGO_TEST_URI and skips the test when it is unset.
func connectLive(t *testing.T, policy DropPolicy) *MongoIO {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	m, err := Connect(ctx, Options{URI: uri, Database: "configurator_test", Drop: policy}, log.NewNop(), metrics.NewPrometheus())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Disconnect(context.Background()) })
	return m
}

func TestLiveSchemaIndexAndData(t *testing.T) {
	m := connectLive(t, DropPolicy{Enabled: true, BuiltAt: "Local", ConnectionFromDefault: true})
	ctx := context.Background()
	const coll = "users"

	_, err := m.RemoveSchemaValidation(ctx, coll)
	require.NoError(t, err)

	schema := bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "required", Value: bson.A{"name"}},
		{Key: "properties", Value: bson.D{{Key: "name", Value: bson.D{{Key: "bsonType", Value: "string"}}}}},
	}
	event, err := m.ApplySchemaValidation(ctx, coll, schema)
	require.NoError(t, err)
	assert.Equal(t, events.StatusSuccess, event.Status)

	_, err = m.AddIndex(ctx, coll, "nameIndex", bson.D{{Key: "name", Value: 1}})
	require.NoError(t, err)
	_, err = m.RemoveIndex(ctx, coll, "nameIndex")
	require.NoError(t, err)

	_, err = m.LoadJSONData(ctx, coll, "users.json", bson.A{bson.D{{Key: "name", Value: "a"}}, bson.D{{Key: "age", Value: 3}}})
	require.Error(t, err)
	assert.NotNil(t, events.Capture(err).Data["write_errors"])

	doc, err := m.Upsert(ctx, "versions", bson.D{{Key: "collection_name", Value: coll}},
		bson.D{{Key: "collection_name", Value: coll}, {Key: "current_version", Value: bson.A{0, 0, 1, 0}}})
	require.NoError(t, err)
	assert.Equal(t, coll, doc.Map()["collection_name"])

	_, err = m.DropDatabase(ctx)
	require.NoError(t, err)
}
