package model

type StepType string

const STEP_TYPE_START StepType = "Start"
const STEP_TYPE_TASK StepType = "Task"
const STEP_TYPE_APPROVAL StepType = "Approval"
const STEP_TYPE_REVIEW StepType = "Review"
const STEP_TYPE_NOTIFICATION StepType = "Notification"
const STEP_TYPE_END StepType = "End"

type AssigneeType string

const ASSIGNEE_NONE AssigneeType = "None"
const ASSIGNEE_ROLE AssigneeType = "Role"
const ASSIGNEE_USER AssigneeType = "User"
const ASSIGNEE_FIELD AssigneeType = "Field-based"
const ASSIGNEE_DYNAMIC AssigneeType = "Dynamic"

type ActionType string

const ACTION_TYPE_APPROVAL ActionType = "Approval"
const ACTION_TYPE_REJECTION ActionType = "Rejection"
const ACTION_TYPE_REQUEST_CHANGES ActionType = "Request Changes"
const ACTION_TYPE_FORWARD ActionType = "Forward"
const ACTION_TYPE_SKIP ActionType = "Skip"

// RoleAll is the sentinel granting an action to every assigned user.
const RoleAll = "All"

type Operator string

const OP_EQUALS Operator = "equals"
const OP_NOT_EQUALS Operator = "not_equals"
const OP_CONTAINS Operator = "contains"
const OP_NOT_CONTAINS Operator = "not_contains"
const OP_STARTS_WITH Operator = "starts_with"
const OP_ENDS_WITH Operator = "ends_with"
const OP_GREATER_THAN Operator = "greater_than"
const OP_LESS_THAN Operator = "less_than"
const OP_GREATER_THAN_OR_EQUAL Operator = "greater_than_or_equal"
const OP_LESS_THAN_OR_EQUAL Operator = "less_than_or_equal"
const OP_IN Operator = "in"
const OP_NOT_IN Operator = "not_in"
const OP_IS_EMPTY Operator = "is_empty"
const OP_IS_NOT_EMPTY Operator = "is_not_empty"

type LogicalOperator string

const LOGICAL_AND LogicalOperator = "AND"
const LOGICAL_OR LogicalOperator = "OR"

// Condition is a single typed comparison against a document field. The
// LogicalOperator tags how this condition combines with its siblings in a
// group, it is not a grouping syntax.
type Condition struct {
	Field           string          `json:"field"`
	Operator        Operator        `json:"operator"`
	Value           string          `json:"value"`
	LogicalOperator LogicalOperator `json:"logicalOperator"`
}

// StepAction is a named operation users can trigger at a step. Role limits
// who may trigger it (RoleAll means any assignee); Conditions gate it
// against the bound document.
type StepAction struct {
	Name       string      `json:"name"`
	Type       ActionType  `json:"type"`
	Role       string      `json:"role"`
	NextStep   int         `json:"nextStep"`
	Conditions []Condition `json:"conditions"`
}

type Step struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	Type               StepType     `json:"type"`
	Order              int          `json:"order"`
	AssigneeType       AssigneeType `json:"assigneeType"`
	AssigneeValue      string       `json:"assigneeValue"`
	AllowedRoles       []string     `json:"allowedRoles"`
	TimeoutDays        int          `json:"timeoutDays"`
	EscalationDays     int          `json:"escalationDays"`
	NotifyOnTimeout    bool         `json:"notifyOnTimeout"`
	NotifyOnEscalation bool         `json:"notifyOnEscalation"`
	AllowSkip          bool         `json:"allowSkip"`
	AllowReject        bool         `json:"allowReject"`
	Actions            []StepAction `json:"actions"`
	Conditions         []Condition  `json:"conditions"`
}

// Transition is a directed edge between two steps, optionally tied to a
// named action and gated by a condition group. Declaration order matters:
// routing returns the first transition whose conditions pass.
type Transition struct {
	FromStep   int         `json:"fromStep"`
	ToStep     int         `json:"toStep"`
	Action     string      `json:"action"`
	Conditions []Condition `json:"conditions"`
}

type Permission struct {
	Role        string `json:"role"`
	AllowCreate bool   `json:"allowCreate"`
	AllowRead   bool   `json:"allowRead"`
	AllowWrite  bool   `json:"allowWrite"`
	AllowDelete bool   `json:"allowDelete"`
}

type WorkflowDefinition struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	DocumentType string       `json:"documentType"`
	IsActive     bool         `json:"isActive"`
	IsDefault    bool         `json:"isDefault"`
	Steps        []Step       `json:"steps"`
	Transitions  []Transition `json:"transitions"`
	Conditions   []Condition  `json:"conditions"`
	Permissions  []Permission `json:"permissions"`
}

func (wd *WorkflowDefinition) StartStep() *Step {
	for i := range wd.Steps {
		if wd.Steps[i].Type == STEP_TYPE_START {
			return &wd.Steps[i]
		}
	}
	return nil
}

func (wd *WorkflowDefinition) StepByOrder(order int) *Step {
	for i := range wd.Steps {
		if wd.Steps[i].Order == order {
			return &wd.Steps[i]
		}
	}
	return nil
}

func (wd *WorkflowDefinition) StepByName(name string) *Step {
	for i := range wd.Steps {
		if wd.Steps[i].Name == name {
			return &wd.Steps[i]
		}
	}
	return nil
}

func (wd *WorkflowDefinition) TransitionsFrom(stepOrder int) []Transition {
	var out []Transition
	for _, tr := range wd.Transitions {
		if tr.FromStep == stepOrder {
			out = append(out, tr)
		}
	}
	return out
}
