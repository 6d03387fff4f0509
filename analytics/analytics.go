package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"

// WorkflowDataCollector receives the audit trail: every action taken on an
// instance and every state change.
type WorkflowDataCollector interface {
	RecordAction(definition string, instanceId string, action string, step string, user string)
	RecordTransition(definition string, instanceId string, fromState string, toState string, user string)
}

var workflowCollector WorkflowDataCollector = noopCollector{}

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		workflowCollector = c
	}
	return nil
}

func RecordAction(definition string, instanceId string, action string, step string, user string) {
	workflowCollector.RecordAction(definition, instanceId, action, step, user)
}

func RecordTransition(definition string, instanceId string, fromState string, toState string, user string) {
	workflowCollector.RecordTransition(definition, instanceId, fromState, toState, user)
}

type noopCollector struct{}

func (noopCollector) RecordAction(definition string, instanceId string, action string, step string, user string) {
}

func (noopCollector) RecordTransition(definition string, instanceId string, fromState string, toState string, user string) {
}
