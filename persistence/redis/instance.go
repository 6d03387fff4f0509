package redis

import (
	"context"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/util"
	"github.com/google/uuid"
)

const INSTANCE_KEY string = "INSTANCE"
const INSTANCE_INDEX_KEY string = "INSTANCES"
const HISTORY_KEY string = "HISTORY"
const COMMENT_KEY string = "COMMENTS"
const ACTIVE_DOC_KEY string = "ACTIVEDOC"

type comment struct {
	User string    `json:"user"`
	Text string    `json:"text"`
	On   time.Time `json:"on"`
}

type redisInstanceStorage struct {
	*baseDao
	instanceEncDec util.EncoderDecoder[model.WorkflowInstance]
	historyEncDec  util.EncoderDecoder[model.HistoryEntry]
	commentEncDec  util.EncoderDecoder[comment]
}

var _ persistence.InstanceStorage = new(redisInstanceStorage)

func NewRedisInstanceStorage(dao *baseDao) *redisInstanceStorage {
	return &redisInstanceStorage{
		baseDao:        dao,
		instanceEncDec: util.NewJsonEncoderDecoder[model.WorkflowInstance](),
		historyEncDec:  util.NewJsonEncoderDecoder[model.HistoryEntry](),
		commentEncDec:  util.NewJsonEncoderDecoder[comment](),
	}
}

func (s *redisInstanceStorage) SaveInstance(instance *model.WorkflowInstance) error {
	ctx := context.Background()
	data, err := s.instanceEncDec.Encode(*instance)
	if err != nil {
		return err
	}
	pipe := s.redisClient.TxPipeline()
	pipe.Set(ctx, s.getNamespaceKey(INSTANCE_KEY, instance.Id), data, 0)
	pipe.SAdd(ctx, s.getNamespaceKey(INSTANCE_INDEX_KEY), instance.Id)
	docKey := s.getNamespaceKey(ACTIVE_DOC_KEY, instance.Document)
	if instance.Status.IsActive() {
		pipe.Set(ctx, docKey, instance.Id, 0)
	} else {
		pipe.Del(ctx, docKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisInstanceStorage) GetInstance(id string) (*model.WorkflowInstance, error) {
	ctx := context.Background()
	val, err := s.redisClient.Get(ctx, s.getNamespaceKey(INSTANCE_KEY, id)).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{Kind: "workflow instance", Key: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.instanceEncDec.Decode([]byte(val))
}

func (s *redisInstanceStorage) DeleteInstance(id string) error {
	ctx := context.Background()
	instance, err := s.GetInstance(id)
	if err != nil {
		return err
	}
	pipe := s.redisClient.TxPipeline()
	pipe.Del(ctx, s.getNamespaceKey(INSTANCE_KEY, id))
	pipe.Del(ctx, s.getNamespaceKey(HISTORY_KEY, id))
	pipe.Del(ctx, s.getNamespaceKey(COMMENT_KEY, id))
	pipe.SRem(ctx, s.getNamespaceKey(INSTANCE_INDEX_KEY), id)
	pipe.Del(ctx, s.getNamespaceKey(ACTIVE_DOC_KEY, instance.Document))
	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisInstanceStorage) ListInstances(statuses []model.WorkflowState) ([]model.WorkflowInstance, error) {
	ctx := context.Background()
	ids, err := s.redisClient.SMembers(ctx, s.getNamespaceKey(INSTANCE_INDEX_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var out []model.WorkflowInstance
	for _, id := range ids {
		instance, err := s.GetInstance(id)
		if err != nil {
			continue
		}
		if len(statuses) > 0 && !containsState(statuses, instance.Status) {
			continue
		}
		out = append(out, *instance)
	}
	return out, nil
}

func (s *redisInstanceStorage) ActiveInstanceForDocument(document string) (*model.WorkflowInstance, error) {
	ctx := context.Background()
	id, err := s.redisClient.Get(ctx, s.getNamespaceKey(ACTIVE_DOC_KEY, document)).Result()
	if err == rd.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.GetInstance(id)
}

func (s *redisInstanceStorage) AppendHistory(instanceId string, entry model.HistoryEntry) error {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	data, err := s.historyEncDec.Encode(entry)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.redisClient.RPush(ctx, s.getNamespaceKey(HISTORY_KEY, instanceId), data).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisInstanceStorage) GetHistory(instanceId string) ([]model.HistoryEntry, error) {
	ctx := context.Background()
	values, err := s.redisClient.LRange(ctx, s.getNamespaceKey(HISTORY_KEY, instanceId), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.HistoryEntry, 0, len(values))
	for _, val := range values {
		entry, err := s.historyEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *redisInstanceStorage) AddComment(instanceId string, user string, text string) error {
	data, err := s.commentEncDec.Encode(comment{User: user, Text: text, On: time.Now()})
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.redisClient.RPush(ctx, s.getNamespaceKey(COMMENT_KEY, instanceId), data).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisInstanceStorage) Commenters(instanceId string) ([]string, error) {
	ctx := context.Background()
	values, err := s.redisClient.LRange(ctx, s.getNamespaceKey(COMMENT_KEY, instanceId), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var owners []string
	for _, val := range values {
		c, err := s.commentEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		owners = append(owners, c.User)
	}
	return owners, nil
}

func containsState(states []model.WorkflowState, s model.WorkflowState) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}
