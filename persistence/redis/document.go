package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/util"
)

const DOCUMENT_KEY string = "DOCUMENT"
const DOCTYPE_WORKFLOW_KEY string = "DOCTYPEWF"

type redisDocumentStorage struct {
	*baseDao
	documentEncDec util.EncoderDecoder[model.Document]
}

var _ persistence.DocumentStorage = new(redisDocumentStorage)

func NewRedisDocumentStorage(dao *baseDao) *redisDocumentStorage {
	return &redisDocumentStorage{
		baseDao:        dao,
		documentEncDec: util.NewJsonEncoderDecoder[model.Document](),
	}
}

func (s *redisDocumentStorage) GetDocument(id string) (*model.Document, error) {
	ctx := context.Background()
	val, err := s.redisClient.Get(ctx, s.getNamespaceKey(DOCUMENT_KEY, id)).Result()
	if err == rd.Nil {
		return nil, persistence.NotFoundError{Kind: "document", Key: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s.documentEncDec.Decode([]byte(val))
}

func (s *redisDocumentStorage) SaveDocument(doc *model.Document) error {
	ctx := context.Background()
	data, err := s.documentEncDec.Encode(*doc)
	if err != nil {
		return err
	}
	if err := s.redisClient.Set(ctx, s.getNamespaceKey(DOCUMENT_KEY, doc.Id), data, 0).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (s *redisDocumentStorage) GetDefaultDefinition(documentType string) (string, error) {
	ctx := context.Background()
	val, err := s.redisClient.HGet(ctx, s.getNamespaceKey(DOCTYPE_WORKFLOW_KEY), documentType).Result()
	if err == rd.Nil {
		return "", nil
	}
	if err != nil {
		return "", persistence.StorageLayerError{Message: err.Error()}
	}
	return val, nil
}

func (s *redisDocumentStorage) SetDefaultDefinition(documentType string, definition string) error {
	ctx := context.Background()
	if definition == "" {
		if err := s.redisClient.HDel(ctx, s.getNamespaceKey(DOCTYPE_WORKFLOW_KEY), documentType).Err(); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
		return nil
	}
	if err := s.redisClient.HSet(ctx, s.getNamespaceKey(DOCTYPE_WORKFLOW_KEY), []string{documentType, definition}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
