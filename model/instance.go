package model

import "time"

type WorkflowState string

const STATE_DRAFT WorkflowState = "Draft"
const STATE_PENDING WorkflowState = "Pending"
const STATE_IN_PROGRESS WorkflowState = "In Progress"
const STATE_COMPLETED WorkflowState = "Completed"
const STATE_REJECTED WorkflowState = "Rejected"
const STATE_CANCELLED WorkflowState = "Cancelled"
const STATE_ON_HOLD WorkflowState = "On Hold"

func (s WorkflowState) IsTerminal() bool {
	return s == STATE_COMPLETED || s == STATE_REJECTED || s == STATE_CANCELLED
}

// IsActive reports whether an instance in this state still occupies its
// document. A document may carry at most one active instance.
func (s WorkflowState) IsActive() bool {
	return s == STATE_PENDING || s == STATE_IN_PROGRESS || s == STATE_ON_HOLD
}

// WorkflowInstance is one running execution of a definition against one
// document. History lives in separate append-only records, not on the
// instance itself.
type WorkflowInstance struct {
	Id               string        `json:"id"`
	Definition       string        `json:"definition"`
	Document         string        `json:"document"`
	Status           WorkflowState `json:"status"`
	CurrentStep      int           `json:"currentStep"`
	CurrentAssignees []string      `json:"currentAssignees"`
	StartedBy        string        `json:"startedBy"`
	StartedOn        time.Time     `json:"startedOn"`
	CompletedBy      string        `json:"completedBy"`
	CompletedOn      *time.Time    `json:"completedOn"`
	CreatedOn        time.Time     `json:"createdOn"`
}

type HistoryEntry struct {
	Id        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Step      string    `json:"step"`
	User      string    `json:"user"`
	Comment   string    `json:"comment"`
	FromState string    `json:"fromState,omitempty"`
	ToState   string    `json:"toState,omitempty"`
}

// Task is the per-assignee work item created when a step is processed.
type Task struct {
	Id          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Document    string    `json:"document"`
	Instance    string    `json:"instance"`
	AssignedTo  string    `json:"assignedTo"`
	AssignedBy  string    `json:"assignedBy"`
	AssignedOn  time.Time `json:"assignedOn"`
	TaskType    string    `json:"taskType"`
	DueDate     time.Time `json:"dueDate"`
}

// Notification is one in-app log record; email delivery is handled by the
// transport separately.
type Notification struct {
	Id        string    `json:"id"`
	ForUser   string    `json:"forUser"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Content   string    `json:"content"`
	Reference string    `json:"reference"`
	CreatedOn time.Time `json:"createdOn"`
}

type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Event       string    `json:"event"`
	User        string    `json:"user"`
	Description string    `json:"description"`
}

type WorkflowStatistics struct {
	Total        int                       `json:"total"`
	ByStatus     map[string]int            `json:"byStatus"`
	ByDefinition map[string]map[string]int `json:"byDefinition"`
}
