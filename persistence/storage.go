package persistence

import (
	"fmt"

	"github.com/eoffice/docflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// MetadataStorage persists workflow definitions.
type MetadataStorage interface {
	SaveDefinition(wd model.WorkflowDefinition) error
	DeleteDefinition(name string) error
	GetDefinition(name string) (*model.WorkflowDefinition, error)
	ListDefinitions(documentType string, activeOnly bool) ([]model.WorkflowDefinition, error)
}

// InstanceStorage persists workflow instances and their append-only history.
// History entries and comments are separate records so concurrent appends
// never fight over one serialized blob.
type InstanceStorage interface {
	SaveInstance(instance *model.WorkflowInstance) error
	GetInstance(id string) (*model.WorkflowInstance, error)
	DeleteInstance(id string) error
	ListInstances(statuses []model.WorkflowState) ([]model.WorkflowInstance, error)
	ActiveInstanceForDocument(document string) (*model.WorkflowInstance, error)
	AppendHistory(instanceId string, entry model.HistoryEntry) error
	GetHistory(instanceId string) ([]model.HistoryEntry, error)
	AddComment(instanceId string, user string, text string) error
	Commenters(instanceId string) ([]string, error)
}

// DocumentStorage is the engine's narrow view of the document store: read a
// document, update its status.
type DocumentStorage interface {
	GetDocument(id string) (*model.Document, error)
	SaveDocument(doc *model.Document) error
	GetDefaultDefinition(documentType string) (string, error)
	SetDefaultDefinition(documentType string, definition string) error
}

// TaskStorage records the per-assignee work items created for a step.
type TaskStorage interface {
	SaveTask(task model.Task) error
	TasksForUser(user string) ([]model.Task, error)
}

// NotificationStorage is the in-app notification log, one record per
// recipient.
type NotificationStorage interface {
	AppendNotification(n model.Notification) error
	NotificationsForUser(user string) ([]model.Notification, error)
}

// Storage bundles every store the engine consumes.
type Storage interface {
	Metadata() MetadataStorage
	Instances() InstanceStorage
	Documents() DocumentStorage
	Tasks() TaskStorage
	Notifications() NotificationStorage
}
