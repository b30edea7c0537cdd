package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrHealthcheckFailed      = errors.New("mongo task store is not reachable")
	ErrClientNil              = errors.New("mongo: client is nil")
	ErrCollectionNil          = errors.New("mongo: task collection is nil")
)
