package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eoffice/docflow/identity"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence/inmem"
	"github.com/eoffice/docflow/routing"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	mu         sync.Mutex
	recipients []string
	subjects   []string
	fail       bool
}

func (m *captureMailer) Send(recipients []string, subject string, body string, referenceType string, referenceId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp gateway down")
	}
	m.recipients = append(m.recipients, recipients...)
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *captureMailer) allRecipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.recipients...)
}

func dispatcherFixture(t *testing.T) (*Dispatcher, *inmem.Storage, *captureMailer) {
	t.Helper()
	store := inmem.NewStorage()
	wd := model.WorkflowDefinition{
		Name:         "review",
		DocumentType: "Memo",
		IsActive:     true,
		Steps: []model.Step{
			{Name: "Submit", Type: model.STEP_TYPE_START, Order: 1, AssigneeType: model.ASSIGNEE_USER, AssigneeValue: "alice"},
			{Name: "Manager Approval", Type: model.STEP_TYPE_APPROVAL, Order: 2, AssigneeType: model.ASSIGNEE_ROLE, AssigneeValue: "Manager"},
			{Name: "Finance Review", Type: model.STEP_TYPE_REVIEW, Order: 3, AssigneeType: model.ASSIGNEE_USER, AssigneeValue: "carol"},
			{Name: "Done", Type: model.STEP_TYPE_END, Order: 4},
		},
	}
	require.NoError(t, store.SaveDefinition(wd))
	require.NoError(t, store.SaveDocument(&model.Document{Id: "DOC-1", Type: "Memo", Title: "memo", Owner: "alice"}))

	directory := identity.NewStaticDirectory()
	directory.AddUser("alice")
	directory.AddUser("bob", "Manager")
	directory.AddUser("carol")
	directory.AddUser("sam", EscalationRole)

	resolver := routing.NewResolver(store.Documents(), directory, routing.NewAssigneeRegistry())
	mailer := &captureMailer{}
	var wg sync.WaitGroup
	return NewDispatcher(store, resolver, directory, mailer, &wg), store, mailer
}

func testInstance() *model.WorkflowInstance {
	return &model.WorkflowInstance{
		Id:          "wf-1",
		Definition:  "review",
		Document:    "DOC-1",
		Status:      model.STATE_IN_PROGRESS,
		CurrentStep: 2,
		StartedBy:   "alice",
	}
}

func TestActionRecipients(t *testing.T) {
	d, _, _ := dispatcherFixture(t)

	t.Run("starter plus next step assignees", func(t *testing.T) {
		recipients := d.ActionRecipients(testInstance(), "Approve", "bob")
		require.ElementsMatch(t, []string{"alice", "carol"}, recipients)
	})

	t.Run("the actor is never included", func(t *testing.T) {
		instance := testInstance()
		instance.CurrentStep = 1
		recipients := d.ActionRecipients(instance, "Approve", "alice")
		// next step is Manager Approval, so bob; alice acted
		require.ElementsMatch(t, []string{"bob"}, recipients)
	})

	t.Run("backward actions add the previous step assignees", func(t *testing.T) {
		instance := testInstance()
		instance.CurrentStep = 3
		recipients := d.ActionRecipients(instance, "Reject", "carol")
		// starter, plus step 2 assignees; step 4 has nobody
		require.ElementsMatch(t, []string{"alice", "bob"}, recipients)
	})
}

func TestDeliverRecordsInAppNotifications(t *testing.T) {
	d, store, mailer := dispatcherFixture(t)
	err := d.deliver(message{
		recipients: []string{"alice", "bob"},
		kind:       EVENT_STEP_ASSIGNED,
		subject:    "Action required",
		body:       "please review",
		reference:  "wf-1",
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, mailer.recipients)

	for _, user := range []string{"alice", "bob"} {
		records, err := store.NotificationsForUser(user)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, EVENT_STEP_ASSIGNED, records[0].Kind)
		require.Equal(t, "wf-1", records[0].Reference)
	}
}

func TestDeliveryFailureIsWrapped(t *testing.T) {
	d, store, mailer := dispatcherFixture(t)
	mailer.fail = true
	err := d.deliver(message{
		recipients: []string{"alice"},
		kind:       EVENT_ACTION,
		subject:    "subject",
		body:       "body",
	})
	var deliveryErr model.NotificationDeliveryError
	require.ErrorAs(t, err, &deliveryErr)

	// the in-app record is written even when outbound delivery fails
	records, err2 := store.NotificationsForUser("alice")
	require.NoError(t, err2)
	require.Len(t, records, 1)
}

func TestEscalateTargetsRoleHolders(t *testing.T) {
	d, _, mailer := dispatcherFixture(t)
	d.Start()
	defer d.Stop()

	instance := testInstance()
	instance.CurrentAssignees = []string{"bob"}
	step := &model.Step{Name: "Manager Approval", Order: 2, TimeoutDays: 1, EscalationDays: 1}
	d.Escalate(instance, step)

	require.Eventually(t, func() bool {
		recipients := mailer.allRecipients()
		return len(recipients) == 1 && recipients[0] == "sam"
	}, 2*time.Second, 10*time.Millisecond)
}
