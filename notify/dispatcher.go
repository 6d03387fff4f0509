package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/eoffice/docflow/identity"
	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/routing"
	"github.com/eoffice/docflow/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event kinds recorded on in-app notifications.
const (
	EVENT_WORKFLOW_STARTED   = "workflow_started"
	EVENT_STEP_ASSIGNED      = "step_assigned"
	EVENT_STEP_COMPLETED     = "step_completed"
	EVENT_WORKFLOW_COMPLETED = "workflow_completed"
	EVENT_WORKFLOW_REJECTED  = "workflow_rejected"
	EVENT_WORKFLOW_CANCELLED = "workflow_cancelled"
	EVENT_WORKFLOW_ON_HOLD   = "workflow_on_hold"
	EVENT_WORKFLOW_RESUMED   = "workflow_resumed"
	EVENT_ACTION             = "workflow_action"
	EVENT_STEP_TIMEOUT       = "step_timeout"
	EVENT_ESCALATION         = "step_escalation"
	EVENT_REMINDER           = "task_reminder"
	EVENT_DIGEST             = "pending_digest"
)

// EscalationRole receives escalation notices for overdue steps.
const EscalationRole = "System Manager"

const referenceTypeInstance = "workflow_instance"

// Dispatcher composes and routes workflow event notifications. Delivery is
// asynchronous and fire-and-forget: failures are logged and never surface
// to the transition that produced the event.
type Dispatcher struct {
	store     persistence.Storage
	resolver  *routing.Resolver
	directory identity.Directory
	mailer    Mailer
	worker    *util.Worker
}

type message struct {
	recipients []string
	kind       string
	subject    string
	body       string
	reference  string
}

func NewDispatcher(store persistence.Storage, resolver *routing.Resolver, directory identity.Directory, mailer Mailer, wg *sync.WaitGroup) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		resolver:  resolver,
		directory: directory,
		mailer:    mailer,
	}
	d.worker = util.NewWorker("notification-dispatcher", wg, d.deliver, 100)
	return d
}

func (d *Dispatcher) Start() {
	d.worker.Start()
}

func (d *Dispatcher) Stop() {
	d.worker.Stop()
}

// ActionRecipients computes who to tell about an action: the starter
// (unless acting), the assignees of the step the action routes to, and for
// the backward actions also the assignees of the previous step. The actor
// is never a recipient.
func (d *Dispatcher) ActionRecipients(instance *model.WorkflowInstance, action string, actor string) []string {
	var out []string
	if instance.StartedBy != "" && instance.StartedBy != actor {
		out = append(out, instance.StartedBy)
	}
	wd, err := d.store.Metadata().GetDefinition(instance.Definition)
	if err != nil {
		return out
	}
	doc, err := d.store.Documents().GetDocument(instance.Document)
	if err != nil {
		return out
	}
	currentStep := wd.StepByOrder(instance.CurrentStep)
	if currentStep != nil {
		if next := d.resolver.NextStep(wd, currentStep, doc, action); next != nil {
			for _, user := range d.resolver.StepAssignees(next, doc) {
				if user != actor {
					out = util.AppendUnique(out, user)
				}
			}
		}
		if action == "Reject" || action == "Request Changes" {
			if prev := wd.StepByOrder(currentStep.Order - 1); prev != nil {
				for _, user := range d.resolver.StepAssignees(prev, doc) {
					if user != actor {
						out = util.AppendUnique(out, user)
					}
				}
			}
		}
	}
	return out
}

func (d *Dispatcher) ActionPerformed(instance *model.WorkflowInstance, action string, actor string, comment string) {
	recipients := d.ActionRecipients(instance, action, actor)
	subject := fmt.Sprintf("Workflow action: %s on %s", action, instance.Document)
	body := fmt.Sprintf("%s performed %q on document %s.", actor, action, instance.Document)
	if comment != "" {
		body = fmt.Sprintf("%s Comment: %s", body, comment)
	}
	d.enqueue(recipients, EVENT_ACTION, subject, body, instance.Id)
}

func (d *Dispatcher) WorkflowStarted(instance *model.WorkflowInstance) {
	subject := fmt.Sprintf("Workflow started for %s", instance.Document)
	body := fmt.Sprintf("Your workflow %q for document %s has been started.", instance.Definition, instance.Document)
	d.enqueue([]string{instance.StartedBy}, EVENT_WORKFLOW_STARTED, subject, body, instance.Id)
}

// StepAssigned tells every assignee of a newly entered step that work is
// waiting for them.
func (d *Dispatcher) StepAssigned(instance *model.WorkflowInstance, step *model.Step, assignees []string) {
	subject := fmt.Sprintf("Action required: %s for %s", step.Name, instance.Document)
	body := fmt.Sprintf("Document %s has reached step %q and is awaiting your action.", instance.Document, step.Name)
	d.enqueue(assignees, EVENT_STEP_ASSIGNED, subject, body, instance.Id)
}

// StepCompleted tells the starter a step finished, previewing where the
// flow goes next.
func (d *Dispatcher) StepCompleted(instance *model.WorkflowInstance, step *model.Step, next *model.Step) {
	subject := fmt.Sprintf("Step completed: %s for %s", step.Name, instance.Document)
	body := fmt.Sprintf("Step %q on document %s is complete.", step.Name, instance.Document)
	if next != nil {
		body = fmt.Sprintf("%s The workflow moves on to %q.", body, next.Name)
	}
	d.enqueue([]string{instance.StartedBy}, EVENT_STEP_COMPLETED, subject, body, instance.Id)
}

func (d *Dispatcher) WorkflowCompleted(instance *model.WorkflowInstance) {
	subject := fmt.Sprintf("Workflow completed for %s", instance.Document)
	body := fmt.Sprintf("The workflow for document %s has completed. The document is approved.", instance.Document)
	d.enqueue(d.participants(instance, ""), EVENT_WORKFLOW_COMPLETED, subject, body, instance.Id)
}

func (d *Dispatcher) WorkflowRejected(instance *model.WorkflowInstance, actor string, comment string) {
	subject := fmt.Sprintf("Workflow rejected for %s", instance.Document)
	body := fmt.Sprintf("The workflow for document %s was rejected by %s.", instance.Document, actor)
	if comment != "" {
		body = fmt.Sprintf("%s Reason: %s", body, comment)
	}
	d.enqueue(d.participants(instance, actor), EVENT_WORKFLOW_REJECTED, subject, body, instance.Id)
}

func (d *Dispatcher) WorkflowCancelled(instance *model.WorkflowInstance, actor string, comment string) {
	subject := fmt.Sprintf("Workflow cancelled for %s", instance.Document)
	body := fmt.Sprintf("The workflow for document %s was cancelled by %s.", instance.Document, actor)
	if comment != "" {
		body = fmt.Sprintf("%s Reason: %s", body, comment)
	}
	d.enqueue(d.participants(instance, actor), EVENT_WORKFLOW_CANCELLED, subject, body, instance.Id)
}

func (d *Dispatcher) WorkflowOnHold(instance *model.WorkflowInstance) {
	subject := fmt.Sprintf("Workflow on hold for %s", instance.Document)
	body := fmt.Sprintf("The workflow for document %s has been put on hold.", instance.Document)
	d.enqueue(instance.CurrentAssignees, EVENT_WORKFLOW_ON_HOLD, subject, body, instance.Id)
}

func (d *Dispatcher) WorkflowResumed(instance *model.WorkflowInstance) {
	subject := fmt.Sprintf("Workflow resumed for %s", instance.Document)
	body := fmt.Sprintf("The workflow for document %s has been resumed.", instance.Document)
	d.enqueue([]string{instance.StartedBy}, EVENT_WORKFLOW_RESUMED, subject, body, instance.Id)
}

// StepTimeout notifies the step's current assignees and the starter that a
// step has been waiting past its deadline.
func (d *Dispatcher) StepTimeout(instance *model.WorkflowInstance, step *model.Step) {
	recipients := util.AppendUnique(append([]string{}, instance.CurrentAssignees...), instance.StartedBy)
	subject := fmt.Sprintf("Step overdue: %s for %s", step.Name, instance.Document)
	body := fmt.Sprintf("Step %q on document %s has exceeded its %d day deadline.", step.Name, instance.Document, step.TimeoutDays)
	d.enqueue(recipients, EVENT_STEP_TIMEOUT, subject, body, instance.Id)
}

// Escalate raises an overdue step with every holder of the escalation role.
func (d *Dispatcher) Escalate(instance *model.WorkflowInstance, step *model.Step) {
	recipients := d.directory.UsersWithRole(EscalationRole)
	if len(recipients) == 0 {
		logger.Warn("no escalation role holders", zap.String("role", EscalationRole), zap.String("instance", instance.Id))
		return
	}
	subject := fmt.Sprintf("Escalation: %s for %s", step.Name, instance.Document)
	body := fmt.Sprintf("Step %q on document %s is overdue and has been escalated. Current assignees: %v.", step.Name, instance.Document, instance.CurrentAssignees)
	d.enqueue(recipients, EVENT_ESCALATION, subject, body, instance.Id)
}

func (d *Dispatcher) Reminder(task *model.Task) {
	subject := fmt.Sprintf("Reminder: %s", task.Title)
	body := fmt.Sprintf("Task %q for document %s is due on %s.", task.Title, task.Document, task.DueDate.Format("2006-01-02"))
	d.enqueue([]string{task.AssignedTo}, EVENT_REMINDER, subject, body, task.Instance)
}

// Digest summarizes a user's pending items in one message.
func (d *Dispatcher) Digest(user string, pending []model.PendingAction) {
	if len(pending) == 0 {
		return
	}
	body := fmt.Sprintf("You have %d pending workflow item(s):", len(pending))
	for _, p := range pending {
		body = fmt.Sprintf("%s\n- %s (%s, step %q)", body, p.Document, p.Instance, p.StepName)
	}
	d.enqueue([]string{user}, EVENT_DIGEST, "Pending workflow items", body, "")
}

func (d *Dispatcher) participants(instance *model.WorkflowInstance, exclude string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(user string) {
		if user == "" || user == exclude {
			return
		}
		if _, ok := seen[user]; ok {
			return
		}
		seen[user] = struct{}{}
		out = append(out, user)
	}
	add(instance.StartedBy)
	if history, err := d.store.Instances().GetHistory(instance.Id); err == nil {
		for _, entry := range history {
			add(entry.User)
		}
	}
	if commenters, err := d.store.Instances().Commenters(instance.Id); err == nil {
		for _, user := range commenters {
			add(user)
		}
	}
	return out
}

func (d *Dispatcher) enqueue(recipients []string, kind string, subject string, body string, reference string) {
	if len(recipients) == 0 {
		return
	}
	d.worker.Sender() <- message{
		recipients: util.Distinct(recipients),
		kind:       kind,
		subject:    subject,
		body:       body,
		reference:  reference,
	}
}

func (d *Dispatcher) deliver(job util.Job) error {
	msg, ok := job.(message)
	if !ok {
		return fmt.Errorf("unexpected job type %T", job)
	}
	for _, user := range msg.recipients {
		record := model.Notification{
			Id:        uuid.NewString(),
			ForUser:   user,
			Kind:      msg.kind,
			Subject:   msg.subject,
			Content:   msg.body,
			Reference: msg.reference,
			CreatedOn: time.Now(),
		}
		if err := d.store.Notifications().AppendNotification(record); err != nil {
			logger.Error("failed to record notification", zap.String("user", user), zap.Error(err))
		}
	}
	if err := d.mailer.Send(msg.recipients, msg.subject, msg.body, referenceTypeInstance, msg.reference); err != nil {
		return model.NotificationDeliveryError{Subject: msg.subject, Cause: err}
	}
	return nil
}
