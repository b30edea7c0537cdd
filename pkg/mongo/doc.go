// Package mongo connects to MongoDB and provides TaskStore, the document
// store implementation of tasks.Store.
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store, _ := mongo.NewTaskStore(db.Collection(cfg.TaskCollection))
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
//
// Task documents keep the field names of tasks.Task (type, nodeId, dateTime,
// priority, executeDate, executionCount, skipCount, additionalData).
package mongo
