package redis

import "github.com/eoffice/docflow/persistence"

type redisStorage struct {
	metadata      *redisMetadataStorage
	instances     *redisInstanceStorage
	documents     *redisDocumentStorage
	tasks         *redisTaskStorage
	notifications *redisNotificationStorage
}

var _ persistence.Storage = new(redisStorage)

func NewRedisStorage(conf Config) *redisStorage {
	dao := newBaseDao(conf)
	return &redisStorage{
		metadata:      NewRedisMetadataStorage(dao),
		instances:     NewRedisInstanceStorage(dao),
		documents:     NewRedisDocumentStorage(dao),
		tasks:         NewRedisTaskStorage(dao),
		notifications: NewRedisNotificationStorage(dao),
	}
}

func (s *redisStorage) Metadata() persistence.MetadataStorage {
	return s.metadata
}

func (s *redisStorage) Instances() persistence.InstanceStorage {
	return s.instances
}

func (s *redisStorage) Documents() persistence.DocumentStorage {
	return s.documents
}

func (s *redisStorage) Tasks() persistence.TaskStorage {
	return s.tasks
}

func (s *redisStorage) Notifications() persistence.NotificationStorage {
	return s.notifications
}
