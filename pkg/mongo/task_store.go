package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

// TaskStore implements tasks.Store on a MongoDB collection. Documents use the
// bson keys of tasks.Task; IDs are ObjectID hex strings.
type TaskStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// TaskStoreOption configures a TaskStore
type TaskStoreOption func(*TaskStore)

// WithTaskStoreClock overrides the time source used for the due filter.
func WithTaskStoreClock(now func() time.Time) TaskStoreOption {
	return func(s *TaskStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTaskStore creates a task store backed by coll.
func NewTaskStore(coll *mongo.Collection, opts ...TaskStoreOption) (*TaskStore, error) {
	if coll == nil {
		return nil, ErrCollectionNil
	}
	s := &TaskStore{coll: coll, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureIndexes creates the index used by the drain query.
func (s *TaskStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "priority", Value: 1}, {Key: "executeDate", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create task index: %w", err)
	}
	return nil
}

// dueFilter matches tasks without executeDate or with executeDate <= now.
// A null comparison also matches a missing field.
func (s *TaskStore) dueFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"executeDate": nil},
		bson.M{"executeDate": bson.M{"$lte": s.now().UTC()}},
	}}
}

func (s *TaskStore) ReadTasks(ctx context.Context) ([]*tasks.Task, error) {
	return s.find(ctx, options.Find())
}

// ReadTasksToExecute returns up to tasks.BatchSize due tasks. Ascending sort
// puts null executeDate first.
func (s *TaskStore) ReadTasksToExecute(ctx context.Context) ([]*tasks.Task, error) {
	return s.find(ctx, options.Find().
		SetSort(bson.D{
			{Key: "priority", Value: 1},
			{Key: "executeDate", Value: 1},
			{Key: "dateTime", Value: 1},
		}).
		SetLimit(tasks.BatchSize))
}

func (s *TaskStore) find(ctx context.Context, opts *options.FindOptionsBuilder) ([]*tasks.Task, error) {
	cur, err := s.coll.Find(ctx, s.dueFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("find due tasks: %w", err)
	}

	var out []*tasks.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return out, nil
}

func (s *TaskStore) CountTasks(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, s.dueFilter())
	if err != nil {
		return 0, fmt.Errorf("count due tasks: %w", err)
	}
	return n, nil
}

func (s *TaskStore) CreateTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return tasks.ErrTaskNil
	}
	assignID(task)
	if _, err := s.coll.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// CreateTasks inserts the batch with one InsertMany call.
func (s *TaskStore) CreateTasks(ctx context.Context, batch []*tasks.Task) error {
	if len(batch) == 0 {
		return nil
	}

	docs := make([]any, len(batch))
	for i, t := range batch {
		if t == nil {
			return tasks.ErrTaskNil
		}
		assignID(t)
		docs[i] = t
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert %d tasks: %w", len(batch), err)
	}
	return nil
}

// UpdateTask rewrites the scheduling fields of an existing task.
func (s *TaskStore) UpdateTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return tasks.ErrTaskNil
	}
	if task.ID == "" {
		return tasks.ErrTaskIDEmpty
	}

	update := bson.M{"$set": bson.M{
		"priority":       task.Priority,
		"executeDate":    task.ExecuteDate,
		"executionCount": task.ExecutionCount,
		"skipCount":      task.SkipCount,
		"additionalData": task.AdditionalData,
	}}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": task.ID}, update)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, task.ID)
	}
	return nil
}

func (s *TaskStore) RemoveTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return nil
	}
	return s.RemoveTaskByID(ctx, task.ID)
}

// RemoveTaskByID deletes the task. A missing document is not an error.
func (s *TaskStore) RemoveTaskByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func assignID(t *tasks.Task) {
	if t.ID == "" {
		t.ID = bson.NewObjectID().Hex()
	}
}

var _ tasks.Store = (*TaskStore)(nil)
