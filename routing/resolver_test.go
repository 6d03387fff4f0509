package routing

import (
	"testing"

	"github.com/eoffice/docflow/identity"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

func testResolver() (*Resolver, *identity.StaticDirectory, *AssigneeRegistry) {
	directory := identity.NewStaticDirectory()
	registry := NewAssigneeRegistry()
	store := inmem.NewStorage()
	return NewResolver(store.Documents(), directory, registry), directory, registry
}

func testDefinition() *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		Name:         "po-approval",
		DocumentType: "Purchase Order",
		IsActive:     true,
		Steps: []model.Step{
			{Name: "Submit", Type: model.STEP_TYPE_START, Order: 1},
			{Name: "Manager Approval", Type: model.STEP_TYPE_APPROVAL, Order: 2, AssigneeType: model.ASSIGNEE_ROLE, AssigneeValue: "Manager"},
			{Name: "Finance Review", Type: model.STEP_TYPE_REVIEW, Order: 3, AssigneeType: model.ASSIGNEE_ROLE, AssigneeValue: "Finance"},
			{Name: "Done", Type: model.STEP_TYPE_END, Order: 4},
		},
	}
}

func TestStepAssignees(t *testing.T) {
	resolver, directory, registry := testResolver()
	directory.AddUser("bob", "Manager")
	directory.AddUser("carol", "Manager")
	directory.AddUser("dave", "Manager")
	directory.Disable("dave")

	doc := &model.Document{Id: "DOC-1", Type: "Purchase Order", Fields: map[string]any{"reviewer": "carol"}}

	t.Run("role assignees are the enabled role holders", func(t *testing.T) {
		step := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_ROLE, AssigneeValue: "Manager"}
		assignees := resolver.StepAssignees(step, doc)
		require.ElementsMatch(t, []string{"bob", "carol"}, assignees)
	})

	t.Run("user assignee", func(t *testing.T) {
		step := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_USER, AssigneeValue: "bob"}
		require.Equal(t, []string{"bob"}, resolver.StepAssignees(step, doc))
	})

	t.Run("field assignee resolving to a user", func(t *testing.T) {
		step := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_FIELD, AssigneeValue: "reviewer"}
		require.Equal(t, []string{"carol"}, resolver.StepAssignees(step, doc))
	})

	t.Run("dynamic assignee uses the registered resolver", func(t *testing.T) {
		registry.Register("department_head", func(doc *model.Document) []string {
			return []string{"erin"}
		})
		step := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_DYNAMIC, AssigneeValue: "department_head"}
		require.Equal(t, []string{"erin"}, resolver.StepAssignees(step, doc))
	})

	t.Run("unregistered dynamic resolver yields nobody", func(t *testing.T) {
		step := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_DYNAMIC, AssigneeValue: "nope"}
		require.Empty(t, resolver.StepAssignees(step, doc))
	})
}

func TestIsUserAssignedToStep(t *testing.T) {
	resolver, directory, _ := testResolver()
	directory.AddUser("bob", "Manager")
	doc := &model.Document{Id: "DOC-1", Type: "Purchase Order", Fields: map[string]any{}}

	roleStep := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_ROLE, AssigneeValue: "Manager"}
	require.True(t, resolver.IsUserAssignedToStep(roleStep, "bob", doc))
	require.False(t, resolver.IsUserAssignedToStep(roleStep, "mallory", doc))

	directory.AddUser("dave", "Manager")
	directory.Disable("dave")
	require.False(t, resolver.IsUserAssignedToStep(roleStep, "dave", doc))

	userStep := &model.Step{Name: "Approval", AssigneeType: model.ASSIGNEE_USER, AssigneeValue: "bob"}
	require.True(t, resolver.IsUserAssignedToStep(userStep, "bob", doc))
	require.False(t, resolver.IsUserAssignedToStep(userStep, "carol", doc))
}

func TestNextStep(t *testing.T) {
	resolver, _, _ := testResolver()
	doc := &model.Document{Id: "DOC-1", Type: "Purchase Order", Fields: map[string]any{"amount": float64(5000)}}

	t.Run("sequential fallback without transitions", func(t *testing.T) {
		wd := testDefinition()
		next := resolver.NextStep(wd, wd.StepByOrder(1), doc, "")
		require.NotNil(t, next)
		require.Equal(t, 2, next.Order)
	})

	t.Run("first passing transition wins in declaration order", func(t *testing.T) {
		wd := testDefinition()
		wd.Transitions = []model.Transition{
			{FromStep: 2, ToStep: 4, Conditions: []model.Condition{
				{Field: "amount", Operator: model.OP_LESS_THAN, Value: "1000", LogicalOperator: model.LOGICAL_AND},
			}},
			{FromStep: 2, ToStep: 3, Conditions: []model.Condition{
				{Field: "amount", Operator: model.OP_GREATER_THAN, Value: "1000", LogicalOperator: model.LOGICAL_AND},
			}},
		}
		next := resolver.NextStep(wd, wd.StepByOrder(2), doc, "")
		require.NotNil(t, next)
		require.Equal(t, 3, next.Order)
	})

	t.Run("transitions for another action are skipped", func(t *testing.T) {
		wd := testDefinition()
		wd.Transitions = []model.Transition{
			{FromStep: 2, ToStep: 4, Action: "Skip"},
		}
		next := resolver.NextStep(wd, wd.StepByOrder(2), doc, "Approve")
		require.NotNil(t, next)
		require.Equal(t, 3, next.Order)
	})

	t.Run("past the last step there is nowhere to go", func(t *testing.T) {
		wd := testDefinition()
		require.Nil(t, resolver.NextStep(wd, wd.StepByOrder(4), doc, ""))
	})

	t.Run("explicit lookup has no fallback", func(t *testing.T) {
		wd := testDefinition()
		require.Nil(t, resolver.ExplicitNextStep(wd, wd.StepByOrder(2), doc, "Approve"))
	})
}

func TestIsActionAllowed(t *testing.T) {
	resolver, directory, _ := testResolver()
	directory.AddUser("bob", "Manager")
	doc := &model.Document{Id: "DOC-1", Type: "Purchase Order", Fields: map[string]any{"amount": float64(500)}}

	t.Run("role gate", func(t *testing.T) {
		action := &model.StepAction{Name: "Approve", Role: "Manager"}
		require.True(t, resolver.IsActionAllowed(action, "bob", doc))
		require.False(t, resolver.IsActionAllowed(action, "mallory", doc))
	})

	t.Run("all sentinel admits anyone", func(t *testing.T) {
		action := &model.StepAction{Name: "Approve", Role: model.RoleAll}
		require.True(t, resolver.IsActionAllowed(action, "mallory", doc))
	})

	t.Run("action conditions apply", func(t *testing.T) {
		action := &model.StepAction{Name: "Approve", Role: "Manager", Conditions: []model.Condition{
			{Field: "amount", Operator: model.OP_LESS_THAN, Value: "1000", LogicalOperator: model.LOGICAL_AND},
		}}
		require.True(t, resolver.IsActionAllowed(action, "bob", doc))

		doc.Fields["amount"] = float64(5000)
		require.False(t, resolver.IsActionAllowed(action, "bob", doc))
	})
}

func TestMatchDefinition(t *testing.T) {
	resolver, _, _ := testResolver()
	doc := &model.Document{Id: "DOC-1", Type: "Purchase Order", Fields: map[string]any{"amount": float64(5000)}}

	inactive := *testDefinition()
	inactive.Name = "inactive"
	inactive.IsActive = false

	gated := *testDefinition()
	gated.Name = "high-value"
	gated.Conditions = []model.Condition{
		{Field: "amount", Operator: model.OP_GREATER_THAN, Value: "1000", LogicalOperator: model.LOGICAL_AND},
	}

	matched := resolver.MatchDefinition([]model.WorkflowDefinition{inactive, gated}, doc)
	require.NotNil(t, matched)
	require.Equal(t, "high-value", matched.Name)

	other := &model.Document{Id: "DOC-2", Type: "Leave Request", Fields: map[string]any{}}
	require.Nil(t, resolver.MatchDefinition([]model.WorkflowDefinition{inactive, gated}, other))
}

func TestPath(t *testing.T) {
	resolver, _, _ := testResolver()
	doc := &model.Document{Id: "DOC-1", Type: "Purchase Order", Fields: map[string]any{}}
	wd := testDefinition()
	instance := &model.WorkflowInstance{Id: "wf-1", CurrentStep: 1}

	path := resolver.Path(wd, instance, doc)
	require.Len(t, path, 4)
	require.Equal(t, "Submit", path[0].Name)
	require.Equal(t, "Done", path[3].Name)

	t.Run("cycles terminate the walk", func(t *testing.T) {
		looped := testDefinition()
		looped.Transitions = []model.Transition{
			{FromStep: 2, ToStep: 3},
			{FromStep: 3, ToStep: 2},
		}
		path := resolver.Path(looped, instance, doc)
		require.Len(t, path, 3)
	})
}
