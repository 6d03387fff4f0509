package rest

import (
	"encoding/json"
	"net/http"

	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	actor := actingUser(r)
	if actor == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	var req model.StartWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed start request")
		return
	}
	defer r.Body.Close()
	instance, err := s.executionService.StartWorkflow(req, actor)
	if err != nil {
		logger.Error("error starting workflow", zap.String("document", req.Document), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"instance": instance.Id, "status": instance.Status})
}

func (s *Server) HandleExecuteAction(w http.ResponseWriter, r *http.Request) {
	actor := actingUser(r)
	if actor == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	id := mux.Vars(r)["id"]
	var req model.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed action request")
		return
	}
	defer r.Body.Close()
	instance, err := s.executionService.ExecuteAction(id, actor, req)
	if err != nil {
		logger.Error("error executing workflow action",
			zap.String("instance", id),
			zap.String("action", req.Action),
			zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"instance": instance.Id, "status": instance.Status, "currentStep": instance.CurrentStep})
}

func (s *Server) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	details, err := s.executionService.Details(id, actingUser(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, details)
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.executionService.Status(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	history, err := s.executionService.History(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

func (s *Server) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	timeline, err := s.executionService.Timeline(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, timeline)
}

func (s *Server) HandlePath(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	path, err := s.executionService.Path(id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, path)
}

func (s *Server) HandleHold(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.executionService.Hold)
}

func (s *Server) HandleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.executionService.Cancel)
}

func (s *Server) HandleResume(w http.ResponseWriter, r *http.Request) {
	actor := actingUser(r)
	if actor == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.executionService.Resume(id, actor); err != nil {
		logger.Error("error resuming workflow", zap.String("instance", id), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(string, string, string) error) {
	actor := actingUser(r)
	if actor == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	id := mux.Vars(r)["id"]
	var body struct {
		Comment string `json:"comment"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
		r.Body.Close()
	}
	if err := op(id, actor, body.Comment); err != nil {
		logger.Error("error transitioning workflow", zap.String("instance", id), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleReassign(w http.ResponseWriter, r *http.Request) {
	actor := actingUser(r)
	if actor == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	id := mux.Vars(r)["id"]
	var req model.ReassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed reassign request")
		return
	}
	defer r.Body.Close()
	if req.Assignee == "" {
		respondWithError(w, http.StatusBadRequest, "missing assignee")
		return
	}
	if err := s.executionService.Reassign(id, actor, req.Assignee); err != nil {
		logger.Error("error reassigning workflow", zap.String("instance", id), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandlePendingActions(w http.ResponseWriter, r *http.Request) {
	user := actingUser(r)
	if user == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	pending, err := s.executionService.PendingActions(user)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pending)
}

func (s *Server) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.executionService.Statistics()
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleUserTasks(w http.ResponseWriter, r *http.Request) {
	user := actingUser(r)
	if user == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	tasks, err := s.store.Tasks().TasksForUser(user)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

func (s *Server) HandleUserNotifications(w http.ResponseWriter, r *http.Request) {
	user := actingUser(r)
	if user == "" {
		respondWithError(w, http.StatusBadRequest, "missing acting user")
		return
	}
	notifications, err := s.store.Notifications().NotificationsForUser(user)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, notifications)
}
