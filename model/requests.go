package model

type StartWorkflowRequest struct {
	Document   string `json:"document"`
	Definition string `json:"definition"`
}

type ActionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
	ToStep  int    `json:"toStep"`
}

type WorkflowStatusResponse struct {
	Instance    string        `json:"instance"`
	Status      WorkflowState `json:"status"`
	CurrentStep int           `json:"currentStep"`
	Definition  string        `json:"definition"`
}

type PendingAction struct {
	Instance    string   `json:"instance"`
	Document    string   `json:"document"`
	Definition  string   `json:"definition"`
	CurrentStep int      `json:"currentStep"`
	StepName    string   `json:"stepName"`
	Actions     []string `json:"actions"`
}

type InstanceDetails struct {
	Instance       *WorkflowInstance   `json:"instance"`
	Definition     *WorkflowDefinition `json:"definition"`
	CurrentStep    *Step               `json:"currentStep"`
	PendingActions []string            `json:"pendingActions"`
	History        []HistoryEntry      `json:"history"`
}

type ReassignRequest struct {
	Assignee string `json:"assignee"`
}
