package service

import (
	"fmt"
	"time"

	"github.com/eoffice/docflow/engine"
	"github.com/eoffice/docflow/flow"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/metadata"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/notify"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/routing"
	"github.com/eoffice/docflow/timers"
	"github.com/eoffice/docflow/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeoutDays = 1

// ExecutionService is the workflow instance controller. It owns instance
// creation, step processing, and the per-instance write lock every mutating
// operation runs under.
type ExecutionService struct {
	store       persistence.Storage
	definitions metadata.DefinitionService
	resolver    *routing.Resolver
	sm          *flow.StateMachine
	engine      *engine.ActionEngine
	dispatcher  *notify.Dispatcher
	timers      *timers.TimerManager
	locks       *instanceLocks
}

func NewExecutionService(store persistence.Storage, definitions metadata.DefinitionService, resolver *routing.Resolver,
	sm *flow.StateMachine, actionEngine *engine.ActionEngine, dispatcher *notify.Dispatcher, tm *timers.TimerManager) *ExecutionService {
	s := &ExecutionService{
		store:       store,
		definitions: definitions,
		resolver:    resolver,
		sm:          sm,
		engine:      actionEngine,
		dispatcher:  dispatcher,
		timers:      tm,
		locks:       newInstanceLocks(),
	}
	sm.SetProcessor(s)
	actionEngine.SetProcessor(s)
	return s
}

// StartWorkflow creates an instance for a document and drives it into
// In Progress. The definition is the requested one, the document type's
// default, or the first active definition whose conditions match.
func (s *ExecutionService) StartWorkflow(req model.StartWorkflowRequest, actor string) (*model.WorkflowInstance, error) {
	doc, err := s.store.Documents().GetDocument(req.Document)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.Instances().ActiveInstanceForDocument(doc.Id); err == nil && existing != nil {
		return nil, model.ValidationError{Definition: existing.Definition,
			Reason: fmt.Sprintf("document %s already has active workflow %s", doc.Id, existing.Id)}
	}
	wd, err := s.resolveDefinition(req.Definition, doc)
	if err != nil {
		return nil, err
	}
	startStep := wd.StartStep()
	if startStep == nil {
		return nil, model.ValidationError{Definition: wd.Name, Reason: "definition has no start step"}
	}

	now := time.Now()
	instance := &model.WorkflowInstance{
		Id:          uuid.NewString(),
		Definition:  wd.Name,
		Document:    doc.Id,
		Status:      model.STATE_PENDING,
		CurrentStep: startStep.Order,
		StartedBy:   actor,
		StartedOn:   now,
		CreatedOn:   now,
	}
	if err := s.store.Instances().SaveInstance(instance); err != nil {
		return nil, err
	}
	logger.Info("workflow started",
		zap.String("instance", instance.Id),
		zap.String("definition", wd.Name),
		zap.String("document", doc.Id),
		zap.String("user", actor))

	if err := s.sm.TransitionTo(instance, model.STATE_IN_PROGRESS, actor, ""); err != nil {
		return nil, err
	}
	return instance, nil
}

func (s *ExecutionService) resolveDefinition(name string, doc *model.Document) (*model.WorkflowDefinition, error) {
	if name != "" {
		return s.definitions.Get(name)
	}
	if def, err := s.store.Documents().GetDefaultDefinition(doc.Type); err == nil && def != "" {
		return s.definitions.Get(def)
	}
	candidates, err := s.definitions.List(doc.Type, true)
	if err != nil {
		return nil, err
	}
	if wd := s.resolver.MatchDefinition(candidates, doc); wd != nil {
		return wd, nil
	}
	return nil, model.ValidationError{Reason: fmt.Sprintf("no active workflow definition for document type %q", doc.Type)}
}

// ExecuteAction runs a named action against an instance under its write
// lock. A still-Pending instance is first pushed into In Progress so the
// action lands on a running workflow.
func (s *ExecutionService) ExecuteAction(instanceId string, actor string, req model.ActionRequest) (*model.WorkflowInstance, error) {
	unlock := s.locks.lock(instanceId)
	defer unlock()

	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return nil, err
	}
	if instance.Status == model.STATE_PENDING {
		if err := s.sm.TransitionTo(instance, model.STATE_IN_PROGRESS, actor, ""); err != nil {
			return nil, err
		}
	}
	if err := s.engine.Execute(instance, actor, req); err != nil {
		return nil, err
	}
	return instance, nil
}

// ProcessStep makes a step the instance's current work: resolves assignees,
// creates their work items, schedules the timeout check, and notifies.
func (s *ExecutionService) ProcessStep(instance *model.WorkflowInstance, step *model.Step, actor string) error {
	doc, err := s.store.Documents().GetDocument(instance.Document)
	if err != nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	assignees := s.resolver.StepAssignees(step, doc)
	instance.CurrentStep = step.Order
	instance.CurrentAssignees = assignees
	if err := s.store.Instances().SaveInstance(instance); err != nil {
		return err
	}

	timeoutDays := step.TimeoutDays
	if timeoutDays <= 0 {
		timeoutDays = defaultTimeoutDays
	}
	dueDate := time.Now().AddDate(0, 0, timeoutDays)
	for _, assignee := range assignees {
		task := model.Task{
			Id:          uuid.NewString(),
			Title:       fmt.Sprintf("%s: %s", step.Name, doc.Title),
			Description: step.Description,
			Document:    doc.Id,
			Instance:    instance.Id,
			AssignedTo:  assignee,
			AssignedBy:  actor,
			AssignedOn:  time.Now(),
			TaskType:    string(step.Type),
			DueDate:     dueDate,
		}
		if err := s.store.Tasks().SaveTask(task); err != nil {
			logger.Error("failed to create work item",
				zap.String("instance", instance.Id),
				zap.String("assignee", assignee),
				zap.Error(err))
		}
	}

	if step.TimeoutDays > 0 {
		id, order := instance.Id, step.Order
		s.timers.ScheduleAfter(time.Duration(step.TimeoutDays)*24*time.Hour, func() {
			s.CheckStepTimeout(id, order)
		})
	}

	entry := model.HistoryEntry{
		Timestamp: time.Now(),
		Action:    "Step Processed",
		Step:      step.Name,
		User:      actor,
	}
	if err := s.store.Instances().AppendHistory(instance.Id, entry); err != nil {
		return err
	}
	s.dispatcher.StepAssigned(instance, step, assignees)
	logger.Info("step processed",
		zap.String("instance", instance.Id),
		zap.String("step", step.Name),
		zap.Strings("assignees", assignees))
	return nil
}

// CheckStepTimeout fires when a scheduled deadline elapses. The instance
// may have moved on; only a still-running instance sitting on the same
// step gets the timeout notice, and an overdue step with escalation days
// configured is escalated in the same pass.
func (s *ExecutionService) CheckStepTimeout(instanceId string, stepOrder int) {
	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		logger.Debug("timeout check skipped, instance gone", zap.String("instance", instanceId))
		return
	}
	if instance.Status.IsTerminal() || instance.CurrentStep != stepOrder {
		return
	}
	wd, err := s.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return
	}
	step := wd.StepByOrder(stepOrder)
	if step == nil {
		return
	}
	if step.NotifyOnTimeout {
		s.dispatcher.StepTimeout(instance, step)
	}
	if step.EscalationDays > 0 {
		s.dispatcher.Escalate(instance, step)
	}
}

func (s *ExecutionService) Hold(instanceId string, actor string, comment string) error {
	return s.transition(instanceId, model.STATE_ON_HOLD, actor, comment)
}

func (s *ExecutionService) Resume(instanceId string, actor string) error {
	return s.transition(instanceId, model.STATE_IN_PROGRESS, actor, "")
}

func (s *ExecutionService) Cancel(instanceId string, actor string, comment string) error {
	return s.transition(instanceId, model.STATE_CANCELLED, actor, comment)
}

func (s *ExecutionService) transition(instanceId string, to model.WorkflowState, actor string, comment string) error {
	unlock := s.locks.lock(instanceId)
	defer unlock()
	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return err
	}
	return s.sm.TransitionTo(instance, to, actor, comment)
}

// Reassign hands the current step's work to another user.
func (s *ExecutionService) Reassign(instanceId string, actor string, assignee string) error {
	unlock := s.locks.lock(instanceId)
	defer unlock()

	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return err
	}
	if instance.Status.IsTerminal() {
		return model.InvalidTransitionError{From: instance.Status, To: instance.Status}
	}
	wd, err := s.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	step := wd.StepByOrder(instance.CurrentStep)
	if step == nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: fmt.Sprintf("current step %d not in definition", instance.CurrentStep)}
	}
	doc, err := s.store.Documents().GetDocument(instance.Document)
	if err != nil {
		return err
	}

	instance.CurrentAssignees = []string{assignee}
	if err := s.store.Instances().SaveInstance(instance); err != nil {
		return err
	}
	task := model.Task{
		Id:          uuid.NewString(),
		Title:       fmt.Sprintf("%s: %s", step.Name, doc.Title),
		Description: step.Description,
		Document:    doc.Id,
		Instance:    instance.Id,
		AssignedTo:  assignee,
		AssignedBy:  actor,
		AssignedOn:  time.Now(),
		TaskType:    string(step.Type),
		DueDate:     time.Now().AddDate(0, 0, defaultTimeoutDays),
	}
	if err := s.store.Tasks().SaveTask(task); err != nil {
		return err
	}
	entry := model.HistoryEntry{
		Timestamp: time.Now(),
		Action:    "Reassigned",
		Step:      step.Name,
		User:      actor,
		Comment:   fmt.Sprintf("reassigned to %s", assignee),
	}
	if err := s.store.Instances().AppendHistory(instance.Id, entry); err != nil {
		return err
	}
	s.dispatcher.StepAssigned(instance, step, []string{assignee})
	return nil
}

func (s *ExecutionService) Status(instanceId string) (*model.WorkflowStatusResponse, error) {
	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return nil, err
	}
	return &model.WorkflowStatusResponse{
		Instance:    instance.Id,
		Status:      instance.Status,
		CurrentStep: instance.CurrentStep,
		Definition:  instance.Definition,
	}, nil
}

// Details returns everything a caller needs to render one instance: the
// instance, its definition, the current step, the actions the given user
// may take, and the full history.
func (s *ExecutionService) Details(instanceId string, user string) (*model.InstanceDetails, error) {
	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return nil, err
	}
	wd, err := s.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return nil, model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	history, err := s.store.Instances().GetHistory(instanceId)
	if err != nil {
		return nil, err
	}
	details := &model.InstanceDetails{
		Instance:    instance,
		Definition:  wd,
		CurrentStep: wd.StepByOrder(instance.CurrentStep),
		History:     history,
	}
	if doc, err := s.store.Documents().GetDocument(instance.Document); err == nil {
		for _, action := range s.resolver.AvailableActions(wd, instance, user, doc) {
			details.PendingActions = append(details.PendingActions, action.Name)
		}
	}
	return details, nil
}

// PendingActions lists the active instances waiting on a user.
func (s *ExecutionService) PendingActions(user string) ([]model.PendingAction, error) {
	instances, err := s.store.Instances().ListInstances([]model.WorkflowState{model.STATE_IN_PROGRESS, model.STATE_PENDING})
	if err != nil {
		return nil, err
	}
	var out []model.PendingAction
	for i := range instances {
		instance := &instances[i]
		if !util.Contains(instance.CurrentAssignees, user) {
			continue
		}
		pending := model.PendingAction{
			Instance:    instance.Id,
			Document:    instance.Document,
			Definition:  instance.Definition,
			CurrentStep: instance.CurrentStep,
		}
		if wd, err := s.store.Metadata().GetDefinition(instance.Definition); err == nil {
			if step := wd.StepByOrder(instance.CurrentStep); step != nil {
				pending.StepName = step.Name
			}
			if doc, err := s.store.Documents().GetDocument(instance.Document); err == nil {
				for _, action := range s.resolver.AvailableActions(wd, instance, user, doc) {
					pending.Actions = append(pending.Actions, action.Name)
				}
			}
		}
		out = append(out, pending)
	}
	return out, nil
}

func (s *ExecutionService) History(instanceId string) ([]model.HistoryEntry, error) {
	return s.store.Instances().GetHistory(instanceId)
}

// Timeline flattens an instance's lifecycle into ordered display events.
func (s *ExecutionService) Timeline(instanceId string) ([]model.TimelineEvent, error) {
	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return nil, err
	}
	history, err := s.store.Instances().GetHistory(instanceId)
	if err != nil {
		return nil, err
	}
	events := []model.TimelineEvent{{
		Timestamp:   instance.StartedOn,
		Event:       "Started",
		User:        instance.StartedBy,
		Description: fmt.Sprintf("Workflow %q started", instance.Definition),
	}}
	for _, entry := range history {
		desc := entry.Action
		if entry.Step != "" {
			desc = fmt.Sprintf("%s at step %q", entry.Action, entry.Step)
		}
		if entry.FromState != "" {
			desc = fmt.Sprintf("%s (%s to %s)", desc, entry.FromState, entry.ToState)
		}
		events = append(events, model.TimelineEvent{
			Timestamp:   entry.Timestamp,
			Event:       entry.Action,
			User:        entry.User,
			Description: desc,
		})
	}
	if instance.CompletedOn != nil {
		events = append(events, model.TimelineEvent{
			Timestamp:   *instance.CompletedOn,
			Event:       string(instance.Status),
			User:        instance.CompletedBy,
			Description: fmt.Sprintf("Workflow finished as %s", instance.Status),
		})
	}
	return events, nil
}

// Path previews the steps an instance would visit from its current
// position given the document's present field values.
func (s *ExecutionService) Path(instanceId string) ([]model.Step, error) {
	instance, err := s.store.Instances().GetInstance(instanceId)
	if err != nil {
		return nil, err
	}
	wd, err := s.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return nil, model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	doc, err := s.store.Documents().GetDocument(instance.Document)
	if err != nil {
		return nil, err
	}
	return s.resolver.Path(wd, instance, doc), nil
}

func (s *ExecutionService) Statistics() (*model.WorkflowStatistics, error) {
	instances, err := s.store.Instances().ListInstances(nil)
	if err != nil {
		return nil, err
	}
	stats := &model.WorkflowStatistics{
		Total:        len(instances),
		ByStatus:     make(map[string]int),
		ByDefinition: make(map[string]map[string]int),
	}
	for _, instance := range instances {
		stats.ByStatus[string(instance.Status)]++
		byDef, ok := stats.ByDefinition[instance.Definition]
		if !ok {
			byDef = make(map[string]int)
			stats.ByDefinition[instance.Definition] = byDef
		}
		byDef[string(instance.Status)]++
	}
	return stats, nil
}
