package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/util"
	"go.uber.org/zap"
)

const DEFINITION_KEY string = "DEFINITION"

type redisMetadataStorage struct {
	*baseDao
	definitionEncDec util.EncoderDecoder[model.WorkflowDefinition]
}

var _ persistence.MetadataStorage = new(redisMetadataStorage)

func NewRedisMetadataStorage(dao *baseDao) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:          dao,
		definitionEncDec: util.NewJsonEncoderDecoder[model.WorkflowDefinition](),
	}
}

func (s *redisMetadataStorage) SaveDefinition(wd model.WorkflowDefinition) error {
	key := s.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	data, err := s.definitionEncDec.Encode(wd)
	if err != nil {
		return err
	}
	if err := s.redisClient.HSet(ctx, key, []string{wd.Name, string(data)}).Err(); err != nil {
		logger.Error("error saving workflow definition", zap.String("definition", wd.Name), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisMetadataStorage) DeleteDefinition(name string) error {
	key := s.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	if err := s.redisClient.HDel(ctx, key, name).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisMetadataStorage) GetDefinition(name string) (*model.WorkflowDefinition, error) {
	key := s.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	val, err := s.redisClient.HGet(ctx, key, name).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{Kind: "workflow definition", Key: name}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.definitionEncDec.Decode([]byte(val))
}

func (s *redisMetadataStorage) ListDefinitions(documentType string, activeOnly bool) ([]model.WorkflowDefinition, error) {
	key := s.getNamespaceKey(DEFINITION_KEY)
	ctx := context.Background()
	values, err := s.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var out []model.WorkflowDefinition
	for _, val := range values {
		wd, err := s.definitionEncDec.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		if documentType != "" && wd.DocumentType != documentType {
			continue
		}
		if activeOnly && !wd.IsActive {
			continue
		}
		out = append(out, *wd)
	}
	return out, nil
}
