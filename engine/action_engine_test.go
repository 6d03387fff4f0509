package engine

import (
	"testing"
	"time"

	"github.com/eoffice/docflow/flow"
	"github.com/eoffice/docflow/identity"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence/inmem"
	"github.com/eoffice/docflow/routing"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	actions []string
}

func (n *stubNotifier) ActionPerformed(instance *model.WorkflowInstance, action string, actor string, comment string) {
	n.actions = append(n.actions, action)
}
func (n *stubNotifier) StepCompleted(instance *model.WorkflowInstance, step *model.Step, next *model.Step) {
}
func (n *stubNotifier) WorkflowStarted(instance *model.WorkflowInstance)   {}
func (n *stubNotifier) WorkflowCompleted(instance *model.WorkflowInstance) {}
func (n *stubNotifier) WorkflowRejected(instance *model.WorkflowInstance, actor string, comment string) {
}
func (n *stubNotifier) WorkflowCancelled(instance *model.WorkflowInstance, actor string, comment string) {
}
func (n *stubNotifier) WorkflowOnHold(instance *model.WorkflowInstance) {}
func (n *stubNotifier) WorkflowResumed(instance *model.WorkflowInstance) {}

type stubProcessor struct {
	processed []int
}

func (p *stubProcessor) ProcessStep(instance *model.WorkflowInstance, step *model.Step, actor string) error {
	p.processed = append(p.processed, step.Order)
	return nil
}

type engineFixture struct {
	store     *inmem.Storage
	directory *identity.StaticDirectory
	engine    *ActionEngine
	notifier  *stubNotifier
	processor *stubProcessor
	instance  *model.WorkflowInstance
}

func newEngineFixture(t *testing.T, wd model.WorkflowDefinition, status model.WorkflowState, currentStep int) *engineFixture {
	t.Helper()
	store := inmem.NewStorage()
	require.NoError(t, store.SaveDefinition(wd))
	require.NoError(t, store.SaveDocument(&model.Document{
		Id: "DOC-1", Type: wd.DocumentType, Title: "doc", Owner: "alice", Status: model.DOC_STATUS_IN_REVIEW,
	}))

	directory := identity.NewStaticDirectory()
	directory.AddUser("alice")
	directory.AddUser("bob", "Manager")

	resolver := routing.NewResolver(store.Documents(), directory, routing.NewAssigneeRegistry())
	notifier := &stubNotifier{}
	processor := &stubProcessor{}
	sm := flow.NewStateMachine(store, notifier)
	sm.SetProcessor(processor)
	actionEngine := NewActionEngine(store, resolver, sm, notifier)
	actionEngine.SetProcessor(processor)

	instance := &model.WorkflowInstance{
		Id:          "wf-1",
		Definition:  wd.Name,
		Document:    "DOC-1",
		Status:      status,
		CurrentStep: currentStep,
		StartedBy:   "alice",
		StartedOn:   time.Now(),
		CreatedOn:   time.Now(),
	}
	require.NoError(t, store.SaveInstance(instance))
	return &engineFixture{
		store:     store,
		directory: directory,
		engine:    actionEngine,
		notifier:  notifier,
		processor: processor,
		instance:  instance,
	}
}

func approvalDefinition() model.WorkflowDefinition {
	return model.WorkflowDefinition{
		Name:         "memo-approval",
		DocumentType: "Memo",
		IsActive:     true,
		Steps: []model.Step{
			{Name: "Submit", Type: model.STEP_TYPE_START, Order: 1},
			{Name: "Manager Approval", Type: model.STEP_TYPE_APPROVAL, Order: 2,
				AssigneeType: model.ASSIGNEE_ROLE, AssigneeValue: "Manager",
				Actions: []model.StepAction{
					{Name: "Approve", Type: model.ACTION_TYPE_APPROVAL, Role: "Manager"},
					{Name: "Reject", Type: model.ACTION_TYPE_REJECTION, Role: "Manager"},
					{Name: "Request Changes", Type: model.ACTION_TYPE_REQUEST_CHANGES, Role: "Manager"},
				}},
			{Name: "Done", Type: model.STEP_TYPE_END, Order: 3},
		},
	}
}

func TestApprove(t *testing.T) {
	t.Run("approval at the last working step completes the workflow", func(t *testing.T) {
		f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Approve(f.instance, "bob", "ship it"))

		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_COMPLETED, persisted.Status)

		doc, err := f.store.GetDocument("DOC-1")
		require.NoError(t, err)
		require.Equal(t, model.DOC_STATUS_APPROVED, doc.Status)

		history, err := f.store.GetHistory("wf-1")
		require.NoError(t, err)
		require.Equal(t, "Approve", history[0].Action)
		require.Equal(t, "State Transition", history[1].Action)
		require.Equal(t, []string{"Approve"}, f.notifier.actions)
	})

	t.Run("approval before the last step advances to the next one", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps = append(wd.Steps[:2:2],
			model.Step{Name: "Finance Review", Type: model.STEP_TYPE_REVIEW, Order: 3,
				AssigneeType: model.ASSIGNEE_USER, AssigneeValue: "carol"},
			model.Step{Name: "Done", Type: model.STEP_TYPE_END, Order: 4})

		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Approve(f.instance, "bob", ""))

		require.Equal(t, []int{3}, f.processor.processed)
		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_IN_PROGRESS, persisted.Status)
		require.Equal(t, 3, persisted.CurrentStep)
	})

	t.Run("unpermitted user is refused", func(t *testing.T) {
		f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 2)
		err := f.engine.Approve(f.instance, "alice", "")
		var unauthorized model.UnauthorizedError
		require.ErrorAs(t, err, &unauthorized)
		require.Equal(t, "alice", unauthorized.User)
		require.Empty(t, f.notifier.actions)
	})

	t.Run("role holder not assigned to the step is refused", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps[1].AssigneeType = model.ASSIGNEE_USER
		wd.Steps[1].AssigneeValue = "carol"

		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		err := f.engine.Approve(f.instance, "bob", "")
		var unauthorized model.UnauthorizedError
		require.ErrorAs(t, err, &unauthorized)

		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_IN_PROGRESS, persisted.Status)
		require.Equal(t, 2, persisted.CurrentStep)
	})

	t.Run("assignee is refused when the step has no approval action", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps[1].Actions = nil

		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		err := f.engine.Approve(f.instance, "bob", "")
		var unauthorized model.UnauthorizedError
		require.ErrorAs(t, err, &unauthorized)

		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_IN_PROGRESS, persisted.Status)
	})
}

func TestReject(t *testing.T) {
	t.Run("reject moves the workflow to rejected", func(t *testing.T) {
		f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Reject(f.instance, "bob", "numbers are off"))

		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_REJECTED, persisted.Status)
		doc, err := f.store.GetDocument("DOC-1")
		require.NoError(t, err)
		require.Equal(t, model.DOC_STATUS_REJECTED, doc.Status)
	})

	t.Run("reject on an already rejected instance fails", func(t *testing.T) {
		f := newEngineFixture(t, approvalDefinition(), model.STATE_REJECTED, 2)
		err := f.engine.Reject(f.instance, "bob", "")
		var transitionErr model.InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
		require.Equal(t, model.STATE_REJECTED, transitionErr.From)
	})
}

func TestRequestChanges(t *testing.T) {
	t.Run("routes to a declared transition target", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Transitions = []model.Transition{
			{FromStep: 2, ToStep: 1, Action: "Request Changes"},
		}
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.RequestChanges(f.instance, "bob", "redo section 2", 0))
		require.Equal(t, []int{1}, f.processor.processed)
	})

	t.Run("routes sequentially when no transition is declared", func(t *testing.T) {
		f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.RequestChanges(f.instance, "bob", "redo section 2", 0))
		require.Equal(t, []int{3}, f.processor.processed)
	})

	t.Run("returns to the previous step when no further step exists", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps = wd.Steps[:2:2]
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.RequestChanges(f.instance, "bob", "redo section 2", 0))
		require.Equal(t, []int{1}, f.processor.processed)
	})

	t.Run("at the first step only the history entry is recorded", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps = wd.Steps[:1:1]
		wd.Steps[0].Actions = []model.StepAction{
			{Name: "Request Changes", Type: model.ACTION_TYPE_REQUEST_CHANGES, Role: model.RoleAll},
		}
		wd.Steps[0].AssigneeType = model.ASSIGNEE_USER
		wd.Steps[0].AssigneeValue = "alice"
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 1)
		require.NoError(t, f.engine.RequestChanges(f.instance, "alice", "", 0))
		require.Empty(t, f.processor.processed)

		history, err := f.store.GetHistory("wf-1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Equal(t, "Request Changes", history[0].Action)
	})
}

func TestForward(t *testing.T) {
	wd := approvalDefinition()
	wd.Steps[1].Actions = append(wd.Steps[1].Actions,
		model.StepAction{Name: "Forward", Type: model.ACTION_TYPE_FORWARD, Role: "Manager"})
	wd.Steps = append(wd.Steps[:2:2],
		model.Step{Name: "Finance Review", Type: model.STEP_TYPE_REVIEW, Order: 3,
			AssigneeType: model.ASSIGNEE_USER, AssigneeValue: "carol"},
		model.Step{Name: "Done", Type: model.STEP_TYPE_END, Order: 4})

	t.Run("forward to an explicit step", func(t *testing.T) {
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Forward(f.instance, "bob", "", 3))
		require.Equal(t, []int{3}, f.processor.processed)
	})

	t.Run("forward to the end step completes", func(t *testing.T) {
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Forward(f.instance, "bob", "", 4))
		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_COMPLETED, persisted.Status)
	})

	t.Run("forward without a target routes sequentially", func(t *testing.T) {
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Forward(f.instance, "bob", "", 0))
		require.Equal(t, []int{3}, f.processor.processed)
	})

	t.Run("forward fails when nothing resolves a target", func(t *testing.T) {
		last := wd
		last.Steps = last.Steps[:2:2]
		f := newEngineFixture(t, last, model.STATE_IN_PROGRESS, 2)
		err := f.engine.Forward(f.instance, "bob", "", 0)
		var validationErr model.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestSkip(t *testing.T) {
	t.Run("skip is refused when the step does not allow it", func(t *testing.T) {
		f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 2)
		err := f.engine.Skip(f.instance, "bob", "")
		var unauthorized model.UnauthorizedError
		require.ErrorAs(t, err, &unauthorized)
	})

	t.Run("skip advances like an approval when allowed", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps[1].AllowSkip = true
		wd.Steps[1].Actions = append(wd.Steps[1].Actions,
			model.StepAction{Name: "Skip", Type: model.ACTION_TYPE_SKIP, Role: "Manager"})
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		require.NoError(t, f.engine.Skip(f.instance, "bob", ""))
		persisted, err := f.store.GetInstance("wf-1")
		require.NoError(t, err)
		require.Equal(t, model.STATE_COMPLETED, persisted.Status)
	})

	t.Run("skip needs a configured skip action even when allowed", func(t *testing.T) {
		wd := approvalDefinition()
		wd.Steps[1].AllowSkip = true
		f := newEngineFixture(t, wd, model.STATE_IN_PROGRESS, 2)
		err := f.engine.Skip(f.instance, "bob", "")
		var unauthorized model.UnauthorizedError
		require.ErrorAs(t, err, &unauthorized)
	})
}

func TestExecuteDispatch(t *testing.T) {
	f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 2)
	err := f.engine.Execute(f.instance, "bob", model.ActionRequest{Action: "Shred"})
	var validationErr model.ValidationError
	require.ErrorAs(t, err, &validationErr)

	require.NoError(t, f.engine.Execute(f.instance, "bob", model.ActionRequest{Action: "Approve"}))
}

func TestMissingCurrentStepIsInconsistent(t *testing.T) {
	f := newEngineFixture(t, approvalDefinition(), model.STATE_IN_PROGRESS, 99)
	err := f.engine.Approve(f.instance, "bob", "")
	var inconsistent model.InconsistentStateError
	require.ErrorAs(t, err, &inconsistent)
}
