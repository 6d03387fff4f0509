package metadata

import (
	"fmt"
	"time"

	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// DefinitionService owns workflow definition lifecycle: save-time
// validation, activation, duplication. Resolved definitions are cached
// because every routing decision re-reads them.
type DefinitionService interface {
	Save(wd model.WorkflowDefinition) error
	Get(name string) (*model.WorkflowDefinition, error)
	List(documentType string, activeOnly bool) ([]model.WorkflowDefinition, error)
	Delete(name string) error
	Duplicate(name string) (*model.WorkflowDefinition, error)
	Activate(name string) error
	Deactivate(name string) error
	Validate(wd model.WorkflowDefinition) error
}

type definitionService struct {
	metadata  persistence.MetadataStorage
	documents persistence.DocumentStorage
	cache     *c.Cache
}

var _ DefinitionService = new(definitionService)

func NewDefinitionService(metadata persistence.MetadataStorage, documents persistence.DocumentStorage) DefinitionService {
	return &definitionService{
		metadata:  metadata,
		documents: documents,
		cache:     c.New(10*time.Minute, 10*time.Minute),
	}
}

func (s *definitionService) Save(wd model.WorkflowDefinition) error {
	if err := s.Validate(wd); err != nil {
		return err
	}
	if wd.IsDefault {
		existing, err := s.metadata.ListDefinitions(wd.DocumentType, false)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.IsDefault && other.Name != wd.Name {
				return model.ValidationError{
					Definition: wd.Name,
					Reason:     fmt.Sprintf("document type %s already has default workflow %s", wd.DocumentType, other.Name),
				}
			}
		}
	}
	if err := s.metadata.SaveDefinition(wd); err != nil {
		return err
	}
	s.cache.Delete(wd.Name)
	if wd.IsActive && wd.IsDefault {
		if err := s.documents.SetDefaultDefinition(wd.DocumentType, wd.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *definitionService) Get(name string) (*model.WorkflowDefinition, error) {
	if cached, found := s.cache.Get(name); found {
		wd := cached.(model.WorkflowDefinition)
		return &wd, nil
	}
	wd, err := s.metadata.GetDefinition(name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(name, *wd, c.DefaultExpiration)
	return wd, nil
}

func (s *definitionService) List(documentType string, activeOnly bool) ([]model.WorkflowDefinition, error) {
	return s.metadata.ListDefinitions(documentType, activeOnly)
}

func (s *definitionService) Delete(name string) error {
	s.cache.Delete(name)
	return s.metadata.DeleteDefinition(name)
}

// Duplicate deep-copies a definition under a new name. The copy is always
// inactive and never default so it can be edited before going live.
func (s *definitionService) Duplicate(name string) (*model.WorkflowDefinition, error) {
	wd, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	copied := *wd
	copied.Name = fmt.Sprintf("%s (Copy)", wd.Name)
	copied.IsActive = false
	copied.IsDefault = false
	copied.Steps = make([]model.Step, len(wd.Steps))
	for i, step := range wd.Steps {
		cs := step
		cs.Actions = append([]model.StepAction(nil), step.Actions...)
		for j := range cs.Actions {
			cs.Actions[j].Conditions = append([]model.Condition(nil), step.Actions[j].Conditions...)
		}
		cs.Conditions = append([]model.Condition(nil), step.Conditions...)
		cs.AllowedRoles = append([]string(nil), step.AllowedRoles...)
		copied.Steps[i] = cs
	}
	copied.Transitions = make([]model.Transition, len(wd.Transitions))
	for i, tr := range wd.Transitions {
		ct := tr
		ct.Conditions = append([]model.Condition(nil), tr.Conditions...)
		copied.Transitions[i] = ct
	}
	copied.Conditions = append([]model.Condition(nil), wd.Conditions...)
	copied.Permissions = append([]model.Permission(nil), wd.Permissions...)

	if err := s.metadata.SaveDefinition(copied); err != nil {
		return nil, err
	}
	logger.Info("workflow definition duplicated", zap.String("source", name), zap.String("copy", copied.Name))
	return &copied, nil
}

func (s *definitionService) Activate(name string) error {
	return s.setActive(name, true)
}

func (s *definitionService) Deactivate(name string) error {
	return s.setActive(name, false)
}

func (s *definitionService) setActive(name string, active bool) error {
	wd, err := s.metadata.GetDefinition(name)
	if err != nil {
		return err
	}
	wd.IsActive = active
	if err := s.metadata.SaveDefinition(*wd); err != nil {
		return err
	}
	s.cache.Delete(name)
	if wd.IsDefault {
		target := wd.Name
		if !active {
			target = ""
		}
		if err := s.documents.SetDefaultDefinition(wd.DocumentType, target); err != nil {
			return err
		}
	}
	return nil
}

// Validate enforces the structural invariants of a definition. Violations
// surface at save time so a running instance never meets a malformed graph.
func (s *definitionService) Validate(wd model.WorkflowDefinition) error {
	fail := func(reason string) error {
		return model.ValidationError{Definition: wd.Name, Reason: reason}
	}
	if wd.Name == "" {
		return fail("name is required")
	}
	if len(wd.Steps) == 0 {
		return fail("workflow must have at least one step")
	}
	orders := make(map[int]string)
	startCount := 0
	endCount := 0
	minOrder := wd.Steps[0].Order
	for _, step := range wd.Steps {
		if step.Order <= 0 {
			return fail(fmt.Sprintf("step %s has non-positive order %d", step.Name, step.Order))
		}
		if prev, dup := orders[step.Order]; dup {
			return fail(fmt.Sprintf("steps %s and %s share order %d", prev, step.Name, step.Order))
		}
		orders[step.Order] = step.Name
		if step.Order < minOrder {
			minOrder = step.Order
		}
		switch step.Type {
		case model.STEP_TYPE_START:
			startCount++
		case model.STEP_TYPE_END:
			endCount++
		}
		if step.AssigneeType != model.ASSIGNEE_NONE && step.AssigneeValue == "" &&
			step.Type != model.STEP_TYPE_START && step.Type != model.STEP_TYPE_END {
			return fail(fmt.Sprintf("step %s requires an assignee value for %s assignment", step.Name, step.AssigneeType))
		}
	}
	if minOrder != 1 {
		return fail("first step order must be 1")
	}
	if startCount != 1 {
		return fail(fmt.Sprintf("workflow must have exactly one Start step, found %d", startCount))
	}
	if endCount == 0 {
		return fail("workflow must have at least one End step")
	}
	seen := make(map[string]struct{})
	for _, tr := range wd.Transitions {
		if _, ok := orders[tr.FromStep]; !ok {
			return fail(fmt.Sprintf("transition references unknown from step %d", tr.FromStep))
		}
		if _, ok := orders[tr.ToStep]; !ok {
			return fail(fmt.Sprintf("transition references unknown to step %d", tr.ToStep))
		}
		if tr.FromStep == tr.ToStep {
			return fail(fmt.Sprintf("transition from step %d to itself", tr.FromStep))
		}
		key := fmt.Sprintf("%d:%d:%s", tr.FromStep, tr.ToStep, tr.Action)
		if _, dup := seen[key]; dup {
			return fail(fmt.Sprintf("duplicate transition %d->%d for action %q", tr.FromStep, tr.ToStep, tr.Action))
		}
		seen[key] = struct{}{}
	}
	return nil
}
