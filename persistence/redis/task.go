package redis

import (
	"context"

	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/util"
)

const TASK_KEY string = "TASKS"
const NOTIFICATION_KEY string = "NOTIFICATIONS"

type redisTaskStorage struct {
	*baseDao
	taskEncDec util.EncoderDecoder[model.Task]
}

var _ persistence.TaskStorage = new(redisTaskStorage)

func NewRedisTaskStorage(dao *baseDao) *redisTaskStorage {
	return &redisTaskStorage{
		baseDao:    dao,
		taskEncDec: util.NewJsonEncoderDecoder[model.Task](),
	}
}

func (s *redisTaskStorage) SaveTask(task model.Task) error {
	data, err := s.taskEncDec.Encode(task)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.redisClient.RPush(ctx, s.getNamespaceKey(TASK_KEY, task.AssignedTo), data).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisTaskStorage) TasksForUser(user string) ([]model.Task, error) {
	ctx := context.Background()
	values, err := s.redisClient.LRange(ctx, s.getNamespaceKey(TASK_KEY, user), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.Task, 0, len(values))
	for _, val := range values {
		task, err := s.taskEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	return out, nil
}

type redisNotificationStorage struct {
	*baseDao
	notificationEncDec util.EncoderDecoder[model.Notification]
}

var _ persistence.NotificationStorage = new(redisNotificationStorage)

func NewRedisNotificationStorage(dao *baseDao) *redisNotificationStorage {
	return &redisNotificationStorage{
		baseDao:            dao,
		notificationEncDec: util.NewJsonEncoderDecoder[model.Notification](),
	}
}

func (s *redisNotificationStorage) AppendNotification(n model.Notification) error {
	data, err := s.notificationEncDec.Encode(n)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.redisClient.RPush(ctx, s.getNamespaceKey(NOTIFICATION_KEY, n.ForUser), data).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisNotificationStorage) NotificationsForUser(user string) ([]model.Notification, error) {
	ctx := context.Background()
	values, err := s.redisClient.LRange(ctx, s.getNamespaceKey(NOTIFICATION_KEY, user), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.Notification, 0, len(values))
	for _, val := range values {
		n, err := s.notificationEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}
