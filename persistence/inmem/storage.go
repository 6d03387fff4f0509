package inmem

import (
	"sync"
	"time"

	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/google/uuid"
)

type comment struct {
	user string
	text string
	on   time.Time
}

// Storage keeps everything in process memory. It backs single-node
// deployments without redis and doubles as the test fixture.
type Storage struct {
	mu            sync.RWMutex
	definitions   map[string]model.WorkflowDefinition
	instances     map[string]model.WorkflowInstance
	history       map[string][]model.HistoryEntry
	comments      map[string][]comment
	documents     map[string]model.Document
	doctypeWf     map[string]string
	tasks         map[string][]model.Task
	notifications map[string][]model.Notification
}

var _ persistence.Storage = new(Storage)

func NewStorage() *Storage {
	return &Storage{
		definitions:   make(map[string]model.WorkflowDefinition),
		instances:     make(map[string]model.WorkflowInstance),
		history:       make(map[string][]model.HistoryEntry),
		comments:      make(map[string][]comment),
		documents:     make(map[string]model.Document),
		doctypeWf:     make(map[string]string),
		tasks:         make(map[string][]model.Task),
		notifications: make(map[string][]model.Notification),
	}
}

func (s *Storage) Metadata() persistence.MetadataStorage           { return s }
func (s *Storage) Instances() persistence.InstanceStorage          { return s }
func (s *Storage) Documents() persistence.DocumentStorage          { return s }
func (s *Storage) Tasks() persistence.TaskStorage                  { return s }
func (s *Storage) Notifications() persistence.NotificationStorage  { return s }

func (s *Storage) SaveDefinition(wd model.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[wd.Name] = wd
	return nil
}

func (s *Storage) DeleteDefinition(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.definitions, name)
	return nil
}

func (s *Storage) GetDefinition(name string) (*model.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wd, ok := s.definitions[name]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "workflow definition", Key: name}
	}
	return &wd, nil
}

func (s *Storage) ListDefinitions(documentType string, activeOnly bool) ([]model.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WorkflowDefinition
	for _, wd := range s.definitions {
		if documentType != "" && wd.DocumentType != documentType {
			continue
		}
		if activeOnly && !wd.IsActive {
			continue
		}
		out = append(out, wd)
	}
	return out, nil
}

func (s *Storage) SaveInstance(instance *model.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[instance.Id] = *instance
	return nil
}

func (s *Storage) GetInstance(id string) (*model.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "workflow instance", Key: id}
	}
	return &instance, nil
}

func (s *Storage) DeleteInstance(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, id)
	delete(s.history, id)
	delete(s.comments, id)
	return nil
}

func (s *Storage) ListInstances(statuses []model.WorkflowState) ([]model.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WorkflowInstance
	for _, instance := range s.instances {
		if len(statuses) > 0 && !containsState(statuses, instance.Status) {
			continue
		}
		out = append(out, instance)
	}
	return out, nil
}

func (s *Storage) ActiveInstanceForDocument(document string) (*model.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, instance := range s.instances {
		if instance.Document == document && instance.Status.IsActive() {
			found := instance
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Storage) AppendHistory(instanceId string, entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	s.history[instanceId] = append(s.history[instanceId], entry)
	return nil
}

func (s *Storage) GetHistory(instanceId string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[instanceId]
	out := make([]model.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *Storage) AddComment(instanceId string, user string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[instanceId] = append(s.comments[instanceId], comment{user: user, text: text, on: time.Now()})
	return nil
}

func (s *Storage) Commenters(instanceId string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owners []string
	for _, c := range s.comments[instanceId] {
		owners = append(owners, c.user)
	}
	return owners, nil
}

func (s *Storage) GetDocument(id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "document", Key: id}
	}
	return &doc, nil
}

func (s *Storage) SaveDocument(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Id] = *doc
	return nil
}

func (s *Storage) GetDefaultDefinition(documentType string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doctypeWf[documentType], nil
}

func (s *Storage) SetDefaultDefinition(documentType string, definition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if definition == "" {
		delete(s.doctypeWf, documentType)
		return nil
	}
	s.doctypeWf[documentType] = definition
	return nil
}

func (s *Storage) SaveTask(task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.AssignedTo] = append(s.tasks[task.AssignedTo], task)
	return nil
}

func (s *Storage) TasksForUser(user string) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.tasks[user]
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (s *Storage) AppendNotification(n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ForUser] = append(s.notifications[n.ForUser], n)
	return nil
}

func (s *Storage) NotificationsForUser(user string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.notifications[user]
	out := make([]model.Notification, len(ns))
	copy(out, ns)
	return out, nil
}

func containsState(states []model.WorkflowState, st model.WorkflowState) bool {
	for _, v := range states {
		if v == st {
			return true
		}
	}
	return false
}
