package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/psds-microservice/issue-tracker/internal/model"
)

const testOID = "5f1d7f1e2a3b4c5d6e7f8a9b"

func issueDoc(oid primitive.ObjectID, title, createdOn string) bson.D {
	return bson.D{
		{Key: "_id", Value: oid},
		{Key: "project", Value: "apitest"},
		{Key: "issue_title", Value: title},
		{Key: "issue_text", Value: "text"},
		{Key: "created_by", Value: "alice"},
		{Key: "assigned_to", Value: ""},
		{Key: "status_text", Value: ""},
		{Key: "open", Value: true},
		{Key: "created_on", Value: createdOn},
		{Key: "updated_on", Value: createdOn},
	}
}

func TestMongoFilter(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex(testOID)
	require.NoError(t, err)

	filter, ok, err := mongoFilter(Criteria{
		model.FieldProject:   "apitest",
		model.FieldID:        testOID,
		model.FieldOpen:      "yes",
		model.FieldCreatedBy: "alice",
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bson.M{
		"project":    "apitest",
		"_id":        oid,
		"open":       true,
		"created_by": "alice",
	}, filter)

	_, ok, err = mongoFilter(Criteria{model.FieldID: "not-an-object-id"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = mongoFilter(Criteria{model.FieldOpen: "maybe"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = mongoFilter(Criteria{"__v": "0"})
	assert.Error(t, err)
}

func TestMongoSet_FormatsTimestamps(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	set := mongoSet(Changes{model.FieldIssueTitle: "renamed", model.FieldOpen: false, model.FieldUpdatedOn: at})
	assert.Equal(t, bson.M{
		"issue_title": "renamed",
		"open":        false,
		"updated_on":  "2024-03-01T10:00:00.000Z",
	}, set)
}

func TestMongoIssue_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 120*int(time.Millisecond), time.UTC)
	in := model.Issue{ID: testOID, Project: "apitest", IssueTitle: "t", Open: true, CreatedOn: at, UpdatedOn: at}

	doc, err := toMongoIssue(&in)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:00:00.120Z", doc.CreatedOn)
	assert.Equal(t, testOID, doc.ID.Hex())

	out, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.IssueTitle, out.IssueTitle)
	assert.True(t, out.Open)
	assert.True(t, out.CreatedOn.Equal(at))
	assert.True(t, out.UpdatedOn.Equal(at))

	_, err = toMongoIssue(&model.Issue{ID: "short"})
	assert.Error(t, err)
}

func TestMongoIssue_MalformedTimestamp(t *testing.T) {
	doc := mongoIssue{ID: primitive.NewObjectID(), CreatedOn: "yesterday", UpdatedOn: "2024-03-01T10:00:00.000Z"}
	_, err := doc.toModel()
	assert.ErrorContains(t, err, "created_on")

	doc = mongoIssue{ID: primitive.NewObjectID(), CreatedOn: "2024-03-01T10:00:00.000Z", UpdatedOn: ""}
	_, err = doc.toModel()
	assert.ErrorContains(t, err, "updated_on")
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("find decodes documents", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")
		first, second := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "issue_tracker.issues", mtest.FirstBatch,
			issueDoc(first, "first", "2024-03-01T10:00:00.000Z"),
			issueDoc(second, "second", "2024-03-01T10:00:01.250Z"),
		))

		items, err := r.Find(ctx, Criteria{model.FieldProject: "apitest"})
		require.NoError(mt, err)
		require.Len(mt, items, 2)
		assert.Equal(mt, first.Hex(), items[0].ID)
		assert.Equal(mt, "second", items[1].IssueTitle)
		assert.True(mt, items[1].CreatedOn.Equal(time.Date(2024, 3, 1, 10, 0, 1, 250*int(time.Millisecond), time.UTC)))
	})

	mt.Run("find rejects malformed timestamps", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "issue_tracker.issues", mtest.FirstBatch,
			issueDoc(primitive.NewObjectID(), "broken", "not a date"),
		))

		_, err := r.Find(ctx, Criteria{model.FieldProject: "apitest"})
		assert.Error(mt, err)
	})

	mt.Run("find with non-hex id matches nothing", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")

		items, err := r.Find(ctx, Criteria{model.FieldProject: "apitest", model.FieldID: "zzz"})
		require.NoError(mt, err)
		assert.NotNil(mt, items)
		assert.Empty(mt, items)
	})

	mt.Run("update reports modified count", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		n, err := r.UpdateByID(ctx, testOID, Changes{model.FieldIssueTitle: "renamed"})
		require.NoError(mt, err)
		assert.EqualValues(mt, 1, n)
	})

	mt.Run("update of unknown id modifies nothing", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		n, err := r.UpdateByID(ctx, testOID, Changes{model.FieldIssueTitle: "renamed"})
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})

	mt.Run("update and delete with non-hex id", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")

		n, err := r.UpdateByID(ctx, "abc", Changes{model.FieldIssueTitle: "x"})
		require.NoError(mt, err)
		assert.Zero(mt, n)

		n, err = r.DeleteByID(ctx, "abc")
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})

	mt.Run("delete reports deleted count", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		n, err := r.DeleteByID(ctx, testOID)
		require.NoError(mt, err)
		assert.EqualValues(mt, 1, n)

		n, err = r.DeleteByID(ctx, testOID)
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})

	mt.Run("insert assigns an object id", func(mt *mtest.T) {
		r := newMongoRepository(mt.Client, "issue_tracker")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		issue := model.Issue{Project: "apitest", IssueTitle: "t", CreatedOn: model.Now(), UpdatedOn: model.Now()}
		require.NoError(mt, r.Insert(ctx, &issue))
		assert.Len(mt, issue.ID, model.IDLength)
	})
}
