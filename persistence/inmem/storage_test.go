package inmem

import (
	"testing"

	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/stretchr/testify/require"
)

func TestActiveInstanceForDocument(t *testing.T) {
	store := NewStorage()

	require.NoError(t, store.SaveInstance(&model.WorkflowInstance{Id: "wf-1", Document: "DOC-1", Status: model.STATE_COMPLETED}))
	active, err := store.ActiveInstanceForDocument("DOC-1")
	require.NoError(t, err)
	require.Nil(t, active)

	require.NoError(t, store.SaveInstance(&model.WorkflowInstance{Id: "wf-2", Document: "DOC-1", Status: model.STATE_IN_PROGRESS}))
	active, err = store.ActiveInstanceForDocument("DOC-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "wf-2", active.Id)
}

func TestListInstancesFiltersByStatus(t *testing.T) {
	store := NewStorage()
	require.NoError(t, store.SaveInstance(&model.WorkflowInstance{Id: "wf-1", Status: model.STATE_IN_PROGRESS}))
	require.NoError(t, store.SaveInstance(&model.WorkflowInstance{Id: "wf-2", Status: model.STATE_REJECTED}))

	running, err := store.ListInstances([]model.WorkflowState{model.STATE_IN_PROGRESS})
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, "wf-1", running[0].Id)

	all, err := store.ListInstances(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestHistoryAndComments(t *testing.T) {
	store := NewStorage()
	require.NoError(t, store.AppendHistory("wf-1", model.HistoryEntry{Action: "Approve", User: "bob"}))
	require.NoError(t, store.AppendHistory("wf-1", model.HistoryEntry{Action: "State Transition", User: "bob"}))

	history, err := store.GetHistory("wf-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "Approve", history[0].Action)
	require.NotEmpty(t, history[0].Id)

	require.NoError(t, store.AddComment("wf-1", "carol", "fine by me"))
	commenters, err := store.Commenters("wf-1")
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, commenters)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := NewStorage()
	_, err := store.GetInstance("nope")
	var notFound persistence.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = store.GetDefinition("nope")
	require.ErrorAs(t, err, &notFound)

	_, err = store.GetDocument("nope")
	require.ErrorAs(t, err, &notFound)
}
