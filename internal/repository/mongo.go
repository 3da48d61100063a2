package repository

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/psds-microservice/issue-tracker/internal/model"
)

type mongoIssue struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Project    string             `bson:"project"`
	IssueTitle string             `bson:"issue_title"`
	IssueText  string             `bson:"issue_text"`
	CreatedBy  string             `bson:"created_by"`
	AssignedTo string             `bson:"assigned_to"`
	StatusText string             `bson:"status_text"`
	Open       bool               `bson:"open"`
	CreatedOn  string             `bson:"created_on"`
	UpdatedOn  string             `bson:"updated_on"`
}

func (d mongoIssue) toModel() (model.Issue, error) {
	created, err := time.Parse(time.RFC3339Nano, d.CreatedOn)
	if err != nil {
		return model.Issue{}, fmt.Errorf("issue %s: created_on: %w", d.ID.Hex(), err)
	}
	updated, err := time.Parse(time.RFC3339Nano, d.UpdatedOn)
	if err != nil {
		return model.Issue{}, fmt.Errorf("issue %s: updated_on: %w", d.ID.Hex(), err)
	}
	return model.Issue{
		ID:         d.ID.Hex(),
		Project:    d.Project,
		IssueTitle: d.IssueTitle,
		IssueText:  d.IssueText,
		CreatedBy:  d.CreatedBy,
		AssignedTo: d.AssignedTo,
		StatusText: d.StatusText,
		Open:       d.Open,
		CreatedOn:  created.UTC(),
		UpdatedOn:  updated.UTC(),
	}, nil
}

func toMongoIssue(issue *model.Issue) (mongoIssue, error) {
	oid, err := primitive.ObjectIDFromHex(issue.ID)
	if err != nil {
		return mongoIssue{}, err
	}
	return mongoIssue{
		ID:         oid,
		Project:    issue.Project,
		IssueTitle: issue.IssueTitle,
		IssueText:  issue.IssueText,
		CreatedBy:  issue.CreatedBy,
		AssignedTo: issue.AssignedTo,
		StatusText: issue.StatusText,
		Open:       issue.Open,
		CreatedOn:  issue.CreatedOn.UTC().Format(model.TimeLayout),
		UpdatedOn:  issue.UpdatedOn.UTC().Format(model.TimeLayout),
	}, nil
}

// mongoFilter translates criteria into a query document. ok is false when a
// value can never match (a non-hex _id or an uncastable open).
func mongoFilter(c Criteria) (filter bson.M, ok bool, err error) {
	filter = bson.M{}
	for field, v := range c {
		if !isFilterable(field) {
			return nil, false, fmt.Errorf("unknown field %q", field)
		}
		switch field {
		case model.FieldID:
			oid, err := primitive.ObjectIDFromHex(v)
			if err != nil {
				return nil, false, nil
			}
			filter[field] = oid
		case model.FieldOpen:
			open, ok := parseOpen(v)
			if !ok {
				return nil, false, nil
			}
			filter[field] = open
		default:
			filter[field] = v
		}
	}
	return filter, true, nil
}

// mongoSet builds the $set document of an update; timestamps are stored as
// TimeLayout strings.
func mongoSet(ch Changes) bson.M {
	set := bson.M{}
	for field, v := range ch {
		if t, ok := v.(time.Time); ok {
			set[field] = t.UTC().Format(model.TimeLayout)
			continue
		}
		set[field] = v
	}
	return set
}

// MongoRepository stores issues in a MongoDB collection with native ObjectID keys.
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoRepository connects to uri and uses the "issues" collection of database.
func NewMongoRepository(ctx context.Context, uri, database string, useTLS bool) (*MongoRepository, error) {
	opts := options.Client().ApplyURI(uri)
	if useTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return newMongoRepository(client, database), nil
}

func newMongoRepository(client *mongo.Client, database string) *MongoRepository {
	return &MongoRepository{
		client: client,
		coll:   client.Database(database).Collection("issues"),
	}
}

func (r *MongoRepository) Find(ctx context.Context, c Criteria) ([]model.Issue, error) {
	items := make([]model.Issue, 0)
	filter, ok, err := mongoFilter(c)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	if !ok {
		return items, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: model.FieldCreatedOn, Value: 1}, {Key: model.FieldID, Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	var docs []mongoIssue
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	for _, d := range docs {
		issue, err := d.toModel()
		if err != nil {
			return nil, fmt.Errorf("find issues: %w", err)
		}
		items = append(items, issue)
	}
	return items, nil
}

func (r *MongoRepository) Insert(ctx context.Context, issue *model.Issue) error {
	if issue.ID == "" {
		issue.ID = NewID()
	}
	doc, err := toMongoIssue(issue)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (r *MongoRepository) UpdateByID(ctx context.Context, id string, ch Changes) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{model.FieldID: oid}, bson.M{"$set": mongoSet(ch)})
	if err != nil {
		return 0, fmt.Errorf("update issue %s: %w", id, err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{model.FieldID: oid})
	if err != nil {
		return 0, fmt.Errorf("delete issue %s: %w", id, err)
	}
	return res.DeletedCount, nil
}

// Migrate creates the project index used by every list query.
func (r *MongoRepository) Migrate(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: model.FieldProject, Value: 1}, {Key: model.FieldCreatedOn, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create project index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
