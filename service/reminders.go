package service

import (
	"time"

	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/util"
	"go.uber.org/zap"
)

// SendReminders nudges assignees whose open work items are due within the
// next day or already overdue. Meant to run on a periodic tick.
func (s *ExecutionService) SendReminders() {
	instances, err := s.store.Instances().ListInstances([]model.WorkflowState{model.STATE_IN_PROGRESS})
	if err != nil {
		logger.Error("reminder sweep failed", zap.Error(err))
		return
	}
	active := make(map[string]*model.WorkflowInstance, len(instances))
	var users []string
	for i := range instances {
		active[instances[i].Id] = &instances[i]
		for _, user := range instances[i].CurrentAssignees {
			users = util.AppendUnique(users, user)
		}
	}
	cutoff := time.Now().AddDate(0, 0, 1)
	for _, user := range users {
		tasks, err := s.store.Tasks().TasksForUser(user)
		if err != nil {
			continue
		}
		for i := range tasks {
			task := &tasks[i]
			instance, ok := active[task.Instance]
			if !ok || !util.Contains(instance.CurrentAssignees, user) {
				continue
			}
			if task.DueDate.After(cutoff) {
				continue
			}
			s.dispatcher.Reminder(task)
		}
	}
}

// SendDigests sends each assignee with open work one summary of everything
// pending on them.
func (s *ExecutionService) SendDigests() {
	instances, err := s.store.Instances().ListInstances([]model.WorkflowState{model.STATE_IN_PROGRESS, model.STATE_PENDING})
	if err != nil {
		logger.Error("digest sweep failed", zap.Error(err))
		return
	}
	var users []string
	for i := range instances {
		for _, user := range instances[i].CurrentAssignees {
			users = util.AppendUnique(users, user)
		}
	}
	for _, user := range users {
		pending, err := s.PendingActions(user)
		if err != nil || len(pending) == 0 {
			continue
		}
		s.dispatcher.Digest(user, pending)
	}
}
