package engine

import (
	"fmt"
	"time"

	"github.com/eoffice/docflow/analytics"
	"github.com/eoffice/docflow/flow"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/routing"
	"go.uber.org/zap"
)

// Action names accepted by Execute.
const (
	ACTION_APPROVE         = "Approve"
	ACTION_REJECT          = "Reject"
	ACTION_REQUEST_CHANGES = "Request Changes"
	ACTION_FORWARD         = "Forward"
	ACTION_SKIP            = "Skip"
)

// ActionNotifier gets told after every completed action so it can fan the
// event out to the computed recipients.
type ActionNotifier interface {
	ActionPerformed(instance *model.WorkflowInstance, action string, actor string, comment string)
	StepCompleted(instance *model.WorkflowInstance, step *model.Step, next *model.Step)
}

// ActionEngine implements the user-facing workflow actions. Each action
// checks permissions, records history, resolves its consequence through
// routing and the state machine, then persists and notifies.
type ActionEngine struct {
	store     persistence.Storage
	resolver  *routing.Resolver
	sm        *flow.StateMachine
	processor flow.StepProcessor
	notifier  ActionNotifier
}

func NewActionEngine(store persistence.Storage, resolver *routing.Resolver, sm *flow.StateMachine, notifier ActionNotifier) *ActionEngine {
	return &ActionEngine{
		store:    store,
		resolver: resolver,
		sm:       sm,
		notifier: notifier,
	}
}

func (e *ActionEngine) SetProcessor(processor flow.StepProcessor) {
	e.processor = processor
}

// Execute dispatches a named action against an instance on behalf of actor.
func (e *ActionEngine) Execute(instance *model.WorkflowInstance, actor string, req model.ActionRequest) error {
	switch req.Action {
	case ACTION_APPROVE:
		return e.Approve(instance, actor, req.Comment)
	case ACTION_REJECT:
		return e.Reject(instance, actor, req.Comment)
	case ACTION_REQUEST_CHANGES:
		return e.RequestChanges(instance, actor, req.Comment, req.ToStep)
	case ACTION_FORWARD:
		return e.Forward(instance, actor, req.Comment, req.ToStep)
	case ACTION_SKIP:
		return e.Skip(instance, actor, req.Comment)
	default:
		return model.ValidationError{Definition: instance.Definition, Reason: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (e *ActionEngine) Approve(instance *model.WorkflowInstance, actor string, comment string) error {
	ctx, err := e.authorize(instance, actor, model.ACTION_TYPE_APPROVAL, ACTION_APPROVE)
	if err != nil {
		return err
	}
	if err := e.logAction(instance, ctx.step, ACTION_APPROVE, actor, comment); err != nil {
		return err
	}
	next := e.resolver.NextStep(ctx.definition, ctx.step, ctx.doc, ACTION_APPROVE)
	if err := e.advanceOrComplete(instance, ctx, next, actor, comment); err != nil {
		return err
	}
	e.notifier.ActionPerformed(instance, ACTION_APPROVE, actor, comment)
	return nil
}

func (e *ActionEngine) Reject(instance *model.WorkflowInstance, actor string, comment string) error {
	ctx, err := e.authorize(instance, actor, model.ACTION_TYPE_REJECTION, ACTION_REJECT)
	if err != nil {
		return err
	}
	if err := e.logAction(instance, ctx.step, ACTION_REJECT, actor, comment); err != nil {
		return err
	}
	if err := e.sm.TransitionTo(instance, model.STATE_REJECTED, actor, comment); err != nil {
		return err
	}
	e.notifier.ActionPerformed(instance, ACTION_REJECT, actor, comment)
	return nil
}

// RequestChanges routes the flow by the usual next-step lookup for the
// action; only when routing resolves nothing does the instance return to
// the step one order below the current one. At the first step there is
// nowhere to go back to and only the history entry is recorded.
func (e *ActionEngine) RequestChanges(instance *model.WorkflowInstance, actor string, comment string, toStep int) error {
	ctx, err := e.authorize(instance, actor, model.ACTION_TYPE_REQUEST_CHANGES, ACTION_REQUEST_CHANGES)
	if err != nil {
		return err
	}
	if err := e.logAction(instance, ctx.step, ACTION_REQUEST_CHANGES, actor, comment); err != nil {
		return err
	}
	var target *model.Step
	if toStep > 0 {
		target = ctx.definition.StepByOrder(toStep)
	}
	if target == nil {
		target = e.resolver.NextStep(ctx.definition, ctx.step, ctx.doc, ACTION_REQUEST_CHANGES)
	}
	if target == nil {
		if ctx.step.Order <= 1 {
			logger.Warn("request changes at first step has no previous step",
				zap.String("instance", instance.Id))
			e.notifier.ActionPerformed(instance, ACTION_REQUEST_CHANGES, actor, comment)
			return nil
		}
		target = ctx.definition.StepByOrder(ctx.step.Order - 1)
		if target == nil {
			return model.InconsistentStateError{Instance: instance.Id, Reason: fmt.Sprintf("no step with order %d", ctx.step.Order-1)}
		}
	}
	if err := e.moveTo(instance, target, actor); err != nil {
		return err
	}
	e.notifier.ActionPerformed(instance, ACTION_REQUEST_CHANGES, actor, comment)
	return nil
}

// Forward pushes the flow to an explicit target step, or to whatever
// routing resolves for the action. It fails when neither yields a step.
func (e *ActionEngine) Forward(instance *model.WorkflowInstance, actor string, comment string, toStep int) error {
	ctx, err := e.authorize(instance, actor, model.ACTION_TYPE_FORWARD, ACTION_FORWARD)
	if err != nil {
		return err
	}
	var target *model.Step
	if toStep > 0 {
		target = ctx.definition.StepByOrder(toStep)
		if target == nil {
			return model.ValidationError{Definition: instance.Definition, Reason: fmt.Sprintf("no step with order %d", toStep)}
		}
	} else {
		target = e.resolver.NextStep(ctx.definition, ctx.step, ctx.doc, ACTION_FORWARD)
	}
	if target == nil {
		return model.ValidationError{Definition: instance.Definition, Reason: "forward needs a target step"}
	}
	if err := e.logAction(instance, ctx.step, ACTION_FORWARD, actor, comment); err != nil {
		return err
	}
	if err := e.advanceOrComplete(instance, ctx, target, actor, comment); err != nil {
		return err
	}
	e.notifier.ActionPerformed(instance, ACTION_FORWARD, actor, comment)
	return nil
}

func (e *ActionEngine) Skip(instance *model.WorkflowInstance, actor string, comment string) error {
	ctx, err := e.loadContext(instance)
	if err != nil {
		return err
	}
	if !ctx.step.AllowSkip {
		return model.UnauthorizedError{User: actor, Action: ACTION_SKIP}
	}
	if err := e.checkPermission(ctx, actor, model.ACTION_TYPE_SKIP, ACTION_SKIP); err != nil {
		return err
	}
	if err := e.logAction(instance, ctx.step, ACTION_SKIP, actor, ""); err != nil {
		return err
	}
	next := e.resolver.NextStep(ctx.definition, ctx.step, ctx.doc, ACTION_SKIP)
	if err := e.advanceOrComplete(instance, ctx, next, actor, comment); err != nil {
		return err
	}
	e.notifier.ActionPerformed(instance, ACTION_SKIP, actor, comment)
	return nil
}

type actionContext struct {
	definition *model.WorkflowDefinition
	step       *model.Step
	doc        *model.Document
}

func (e *ActionEngine) loadContext(instance *model.WorkflowInstance) (*actionContext, error) {
	wd, err := e.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return nil, model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	step := wd.StepByOrder(instance.CurrentStep)
	if step == nil {
		return nil, model.InconsistentStateError{Instance: instance.Id, Reason: fmt.Sprintf("current step %d not in definition %s", instance.CurrentStep, wd.Name)}
	}
	doc, err := e.store.Documents().GetDocument(instance.Document)
	if err != nil {
		return nil, model.InconsistentStateError{Instance: instance.Id, Reason: err.Error()}
	}
	return &actionContext{definition: wd, step: step, doc: doc}, nil
}

func (e *ActionEngine) authorize(instance *model.WorkflowInstance, actor string, actionType model.ActionType, actionName string) (*actionContext, error) {
	ctx, err := e.loadContext(instance)
	if err != nil {
		return nil, err
	}
	if err := e.checkPermission(ctx, actor, actionType, actionName); err != nil {
		return nil, err
	}
	return ctx, nil
}

// checkPermission authorizes an actor for an action type on the current
// step. The actor must be assigned to the step, the step must declare at
// least one action of that type, and one of those actions must admit the
// actor.
func (e *ActionEngine) checkPermission(ctx *actionContext, actor string, actionType model.ActionType, actionName string) error {
	if !e.resolver.IsUserAssignedToStep(ctx.step, actor, ctx.doc) {
		return model.UnauthorizedError{User: actor, Action: actionName}
	}
	for i := range ctx.step.Actions {
		action := &ctx.step.Actions[i]
		if action.Type != actionType {
			continue
		}
		if e.resolver.IsActionAllowed(action, actor, ctx.doc) {
			return nil
		}
	}
	return model.UnauthorizedError{User: actor, Action: actionName}
}

func (e *ActionEngine) logAction(instance *model.WorkflowInstance, step *model.Step, action string, actor string, comment string) error {
	entry := model.HistoryEntry{
		Timestamp: time.Now(),
		Action:    action,
		Step:      step.Name,
		User:      actor,
		Comment:   comment,
	}
	if err := e.store.Instances().AppendHistory(instance.Id, entry); err != nil {
		return err
	}
	if comment != "" {
		if err := e.store.Instances().AddComment(instance.Id, actor, comment); err != nil {
			return err
		}
	}
	analytics.RecordAction(instance.Definition, instance.Id, action, step.Name, actor)
	logger.Info("workflow action",
		zap.String("instance", instance.Id),
		zap.String("action", action),
		zap.String("step", step.Name),
		zap.String("user", actor))
	return nil
}

// advanceOrComplete moves the instance to next, or completes the workflow
// when next is absent or an end step.
func (e *ActionEngine) advanceOrComplete(instance *model.WorkflowInstance, ctx *actionContext, next *model.Step, actor string, comment string) error {
	if next == nil || next.Type == model.STEP_TYPE_END {
		if err := e.sm.TransitionTo(instance, model.STATE_COMPLETED, actor, comment); err != nil {
			return err
		}
		e.notifier.StepCompleted(instance, ctx.step, nil)
		return nil
	}
	if err := e.moveTo(instance, next, actor); err != nil {
		return err
	}
	e.notifier.StepCompleted(instance, ctx.step, next)
	return nil
}

func (e *ActionEngine) moveTo(instance *model.WorkflowInstance, step *model.Step, actor string) error {
	instance.CurrentStep = step.Order
	if err := e.store.Instances().SaveInstance(instance); err != nil {
		return err
	}
	return e.processor.ProcessStep(instance, step, actor)
}
