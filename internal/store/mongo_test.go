package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestToBSONDoc_KeepsOrderAndNesting(t *testing.T) {
	r := model.Record{
		{Key: "b", Value: "x"},
		{Key: "a", Value: model.Record{{Key: "z", Value: int64(1)}}},
		{Key: "list", Value: []interface{}{model.Record{{Key: "k", Value: true}}, "s"}},
	}

	doc := toBSONDoc(r)
	require.Len(t, doc, 3)
	assert.Equal(t, "b", doc[0].Key)
	assert.Equal(t, bson.D{{Key: "z", Value: int64(1)}}, doc[1].Value)
	assert.Equal(t, bson.A{bson.D{{Key: "k", Value: true}}, "s"}, doc[2].Value)
}

func TestFromBSONDoc_ConvertsDriverTypes(t *testing.T) {
	oid := bson.NewObjectID()
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	r := fromBSONDoc(bson.D{
		{Key: "_id", Value: oid},
		{Key: "created", Value: bson.NewDateTimeFromTime(when)},
		{Key: "profile", Value: bson.D{{Key: "age", Value: int32(30)}}},
		{Key: "tags", Value: bson.A{"a", bson.D{{Key: "n", Value: 1.5}}}},
	})

	assert.Equal(t, []string{"_id", "created", "profile", "tags"}, r.Keys())

	id, _ := r.Get("_id")
	assert.Equal(t, oid.Hex(), id)

	created, _ := r.Get("created")
	assert.Equal(t, "2024-01-02T03:04:05Z", created)

	profile, _ := r.Get("profile")
	assert.Equal(t, model.Record{{Key: "age", Value: int32(30)}}, profile)

	tags, _ := r.Get("tags")
	assert.Equal(t, []interface{}{"a", model.Record{{Key: "n", Value: 1.5}}}, tags)
}

func TestFormatID(t *testing.T) {
	oid := bson.NewObjectID()

	assert.Equal(t, oid.Hex(), formatID(oid))
	assert.Equal(t, "abc", formatID("abc"))
	assert.Equal(t, "42", formatID(int64(42)))
}
