package flow

import (
	"fmt"
	"time"

	"github.com/eoffice/docflow/analytics"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"go.uber.org/zap"
)

// transitionTable is the source of truth for legal state changes.
var transitionTable = map[model.WorkflowState][]model.WorkflowState{
	model.STATE_DRAFT:       {model.STATE_PENDING, model.STATE_CANCELLED},
	model.STATE_PENDING:     {model.STATE_IN_PROGRESS, model.STATE_CANCELLED},
	model.STATE_IN_PROGRESS: {model.STATE_COMPLETED, model.STATE_REJECTED, model.STATE_ON_HOLD, model.STATE_CANCELLED},
	model.STATE_ON_HOLD:     {model.STATE_IN_PROGRESS, model.STATE_CANCELLED},
	model.STATE_COMPLETED:   {},
	model.STATE_REJECTED:    {model.STATE_PENDING, model.STATE_CANCELLED},
	model.STATE_CANCELLED:   {model.STATE_DRAFT},
}

// StepProcessor is the slice of the instance controller the state machine
// calls back into when a state entry requires step processing.
type StepProcessor interface {
	ProcessStep(instance *model.WorkflowInstance, step *model.Step, actor string) error
}

// Notifier receives the state-entry notification events. Implementations
// must be fire-and-forget; the state machine never checks delivery.
type Notifier interface {
	WorkflowStarted(instance *model.WorkflowInstance)
	WorkflowCompleted(instance *model.WorkflowInstance)
	WorkflowRejected(instance *model.WorkflowInstance, actor string, comment string)
	WorkflowCancelled(instance *model.WorkflowInstance, actor string, comment string)
	WorkflowOnHold(instance *model.WorkflowInstance)
	WorkflowResumed(instance *model.WorkflowInstance)
}

type StateMachine struct {
	store     persistence.Storage
	notifier  Notifier
	processor StepProcessor
}

func NewStateMachine(store persistence.Storage, notifier Notifier) *StateMachine {
	return &StateMachine{
		store:    store,
		notifier: notifier,
	}
}

// SetProcessor wires the instance controller in after construction; the two
// reference each other.
func (sm *StateMachine) SetProcessor(processor StepProcessor) {
	sm.processor = processor
}

func ValidTransitions(from model.WorkflowState) []model.WorkflowState {
	return transitionTable[from]
}

func CanTransition(from, to model.WorkflowState) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves an instance to a new state. It fails before any
// mutation when the transition is not in the table; otherwise it persists
// the new state, records the transition, and runs the state-entry effects.
// A failed persist leaves the in-memory instance untouched.
func (sm *StateMachine) TransitionTo(instance *model.WorkflowInstance, newState model.WorkflowState, actor string, comment string) error {
	from := instance.Status
	if !CanTransition(from, newState) {
		return model.InvalidTransitionError{From: from, To: newState}
	}

	prevBy, prevOn := instance.CompletedBy, instance.CompletedOn
	instance.Status = newState
	if newState.IsTerminal() {
		now := time.Now()
		instance.CompletedBy = actor
		instance.CompletedOn = &now
	}
	if err := sm.store.Instances().SaveInstance(instance); err != nil {
		instance.Status = from
		instance.CompletedBy, instance.CompletedOn = prevBy, prevOn
		return err
	}

	entry := model.HistoryEntry{
		Timestamp: time.Now(),
		Action:    "State Transition",
		User:      actor,
		Comment:   comment,
		FromState: string(from),
		ToState:   string(newState),
	}
	if err := sm.store.Instances().AppendHistory(instance.Id, entry); err != nil {
		return err
	}
	if comment != "" {
		text := fmt.Sprintf("State changed from %s to %s: %s", from, newState, comment)
		if err := sm.store.Instances().AddComment(instance.Id, actor, text); err != nil {
			return err
		}
	}
	analytics.RecordTransition(instance.Definition, instance.Id, string(from), string(newState), actor)
	logger.Info("workflow state changed",
		zap.String("instance", instance.Id),
		zap.String("from", string(from)),
		zap.String("to", string(newState)),
		zap.String("user", actor))

	return sm.runEntryEffects(instance, from, newState, actor, comment)
}

func (sm *StateMachine) runEntryEffects(instance *model.WorkflowInstance, from, to model.WorkflowState, actor string, comment string) error {
	switch to {
	case model.STATE_IN_PROGRESS:
		if from == model.STATE_ON_HOLD {
			return sm.resume(instance, actor)
		}
		return sm.start(instance, actor)
	case model.STATE_COMPLETED:
		return sm.complete(instance)
	case model.STATE_REJECTED:
		if err := sm.syncDocumentStatus(instance, model.DOC_STATUS_REJECTED); err != nil {
			return err
		}
		sm.notifier.WorkflowRejected(instance, actor, comment)
	case model.STATE_CANCELLED:
		if err := sm.syncDocumentStatus(instance, model.DOC_STATUS_CANCELLED); err != nil {
			return err
		}
		sm.notifier.WorkflowCancelled(instance, actor, comment)
	case model.STATE_ON_HOLD:
		if err := sm.syncDocumentStatus(instance, model.DOC_STATUS_ON_HOLD); err != nil {
			return err
		}
		sm.notifier.WorkflowOnHold(instance)
	}
	return nil
}

func (sm *StateMachine) start(instance *model.WorkflowInstance, actor string) error {
	wd, err := sm.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	if err := sm.syncDocumentStatus(instance, model.DOC_STATUS_IN_REVIEW); err != nil {
		return err
	}
	startStep := wd.StartStep()
	if startStep == nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: "definition has no start step"}
	}
	if err := sm.processor.ProcessStep(instance, startStep, actor); err != nil {
		return err
	}
	sm.notifier.WorkflowStarted(instance)
	return nil
}

func (sm *StateMachine) resume(instance *model.WorkflowInstance, actor string) error {
	wd, err := sm.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	if err := sm.syncDocumentStatus(instance, model.DOC_STATUS_IN_REVIEW); err != nil {
		return err
	}
	currentStep := wd.StepByOrder(instance.CurrentStep)
	if currentStep == nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: fmt.Sprintf("current step %d not in definition", instance.CurrentStep)}
	}
	if err := sm.processor.ProcessStep(instance, currentStep, actor); err != nil {
		return err
	}
	sm.notifier.WorkflowResumed(instance)
	return nil
}

func (sm *StateMachine) complete(instance *model.WorkflowInstance) error {
	if err := sm.syncDocumentStatus(instance, model.DOC_STATUS_APPROVED); err != nil {
		return err
	}
	sm.notifier.WorkflowCompleted(instance)
	return nil
}

func (sm *StateMachine) syncDocumentStatus(instance *model.WorkflowInstance, status string) error {
	doc, err := sm.store.Documents().GetDocument(instance.Document)
	if err != nil {
		return model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	doc.Status = status
	return sm.store.Documents().SaveDocument(doc)
}

// Participants returns everyone who touched the instance: the starter,
// every user in its history, and everyone who commented.
func Participants(store persistence.InstanceStorage, instance *model.WorkflowInstance) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(user string) {
		if user == "" {
			return
		}
		if _, ok := seen[user]; ok {
			return
		}
		seen[user] = struct{}{}
		out = append(out, user)
	}
	add(instance.StartedBy)
	history, err := store.GetHistory(instance.Id)
	if err == nil {
		for _, entry := range history {
			add(entry.User)
		}
	}
	commenters, err := store.Commenters(instance.Id)
	if err == nil {
		for _, user := range commenters {
			add(user)
		}
	}
	return out
}
