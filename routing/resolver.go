package routing

import (
	"github.com/eoffice/docflow/condition"
	"github.com/eoffice/docflow/identity"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/util"
	"go.uber.org/zap"
)

// Resolver answers the routing questions of the engine: who acts at a step,
// which step comes next, and which actions a user may take.
type Resolver struct {
	documents persistence.DocumentStorage
	directory identity.Directory
	registry  *AssigneeRegistry
}

func NewResolver(documents persistence.DocumentStorage, directory identity.Directory, registry *AssigneeRegistry) *Resolver {
	return &Resolver{
		documents: documents,
		directory: directory,
		registry:  registry,
	}
}

// StepAssignees resolves the identities eligible to act at a step.
func (r *Resolver) StepAssignees(step *model.Step, doc *model.Document) []string {
	switch step.AssigneeType {
	case model.ASSIGNEE_ROLE:
		return util.Distinct(r.directory.UsersWithRole(step.AssigneeValue))
	case model.ASSIGNEE_USER:
		return []string{step.AssigneeValue}
	case model.ASSIGNEE_FIELD:
		if doc == nil {
			return nil
		}
		value, _ := condition.FieldValue(doc, step.AssigneeValue).(string)
		if value == "" {
			return nil
		}
		if r.directory.UserExists(value) {
			return []string{value}
		}
		if r.directory.RoleExists(value) {
			return util.Distinct(r.directory.UsersWithRole(value))
		}
		return nil
	case model.ASSIGNEE_DYNAMIC:
		fn, ok := r.registry.Resolve(step.AssigneeValue)
		if !ok {
			logger.Warn("dynamic assignee resolver not registered", zap.String("resolver", step.AssigneeValue), zap.String("step", step.Name))
			return nil
		}
		return util.Distinct(fn(doc))
	}
	return nil
}

// IsUserAssignedToStep mirrors StepAssignees as a per-user membership test.
func (r *Resolver) IsUserAssignedToStep(step *model.Step, user string, doc *model.Document) bool {
	switch step.AssigneeType {
	case model.ASSIGNEE_ROLE:
		return r.directory.IsEnabled(user) && r.directory.HasRole(user, step.AssigneeValue)
	case model.ASSIGNEE_USER:
		return step.AssigneeValue == user
	case model.ASSIGNEE_FIELD, model.ASSIGNEE_DYNAMIC:
		return util.Contains(r.StepAssignees(step, doc), user)
	}
	return false
}

// NextStep finds the step that follows currentStep for an action. Explicit
// transitions are evaluated in declaration order and the first one whose
// conditions pass wins; with no transitions, or none passing, routing falls
// back to the step with the next sequential order. A nil result means the
// flow has nowhere further to go.
func (r *Resolver) NextStep(wd *model.WorkflowDefinition, currentStep *model.Step, doc *model.Document, action string) *model.Step {
	if next := r.ExplicitNextStep(wd, currentStep, doc, action); next != nil {
		return next
	}
	return wd.StepByOrder(currentStep.Order + 1)
}

// ExplicitNextStep resolves only the declared transitions, without the
// sequential fallback. Returns nil when no declared transition matches.
func (r *Resolver) ExplicitNextStep(wd *model.WorkflowDefinition, currentStep *model.Step, doc *model.Document, action string) *model.Step {
	for _, tr := range wd.TransitionsFrom(currentStep.Order) {
		if action != "" && tr.Action != "" && tr.Action != action {
			continue
		}
		if condition.EvaluateGroup(tr.Conditions, doc) {
			return wd.StepByOrder(tr.ToStep)
		}
	}
	return nil
}

// IsActionAllowed checks an action's role requirement and its own condition
// group for a user. RoleAll opens the action to every assignee.
func (r *Resolver) IsActionAllowed(action *model.StepAction, user string, doc *model.Document) bool {
	if action.Role != "" && action.Role != model.RoleAll && !r.directory.HasRole(user, action.Role) {
		return false
	}
	if len(action.Conditions) > 0 {
		return condition.EvaluateGroup(action.Conditions, doc)
	}
	return true
}

// AvailableActions lists the current step's actions the user may trigger.
// Users not assigned to the step get none.
func (r *Resolver) AvailableActions(wd *model.WorkflowDefinition, instance *model.WorkflowInstance, user string, doc *model.Document) []model.StepAction {
	currentStep := wd.StepByOrder(instance.CurrentStep)
	if currentStep == nil {
		return nil
	}
	if !r.IsUserAssignedToStep(currentStep, user, doc) {
		return nil
	}
	var out []model.StepAction
	for _, action := range currentStep.Actions {
		if r.IsActionAllowed(&action, user, doc) {
			out = append(out, action)
		}
	}
	return out
}

// MatchDefinition finds the first active definition for the document's type
// whose top-level conditions accept the document.
func (r *Resolver) MatchDefinition(definitions []model.WorkflowDefinition, doc *model.Document) *model.WorkflowDefinition {
	for i := range definitions {
		wd := &definitions[i]
		if !wd.IsActive || wd.DocumentType != doc.Type {
			continue
		}
		if condition.EvaluateGroup(wd.Conditions, doc) {
			return wd
		}
	}
	return nil
}

// Path previews the steps an instance would visit from its current step,
// following default routing. Cycles introduced by conditional transitions
// terminate the walk.
func (r *Resolver) Path(wd *model.WorkflowDefinition, instance *model.WorkflowInstance, doc *model.Document) []model.Step {
	var path []model.Step
	visited := make(map[int]struct{})
	step := wd.StepByOrder(instance.CurrentStep)
	for step != nil {
		if _, seen := visited[step.Order]; seen {
			break
		}
		visited[step.Order] = struct{}{}
		path = append(path, *step)
		if step.Type == model.STEP_TYPE_END {
			break
		}
		step = r.NextStep(wd, step, doc, "")
	}
	return path
}
