package rest

import (
	"encoding/json"
	"net/http"

	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveDefinition(w http.ResponseWriter, r *http.Request) {
	var wd model.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&wd); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed workflow definition")
		return
	}
	defer r.Body.Close()
	if err := s.definitionService.Save(wd); err != nil {
		logger.Error("error saving workflow definition", zap.String("name", wd.Name), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"name": wd.Name})
}

func (s *Server) HandleListDefinitions(w http.ResponseWriter, r *http.Request) {
	documentType := r.URL.Query().Get("documentType")
	activeOnly := r.URL.Query().Get("active") == "true"
	definitions, err := s.definitionService.List(documentType, activeOnly)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, definitions)
}

func (s *Server) HandleGetDefinition(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	wd, err := s.definitionService.Get(name)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, wd)
}

func (s *Server) HandleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.definitionService.Delete(name); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleDuplicateDefinition(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	copy, err := s.definitionService.Duplicate(name)
	if err != nil {
		logger.Error("error duplicating workflow definition", zap.String("name", name), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, map[string]any{"name": copy.Name})
}

func (s *Server) HandleActivateDefinition(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.definitionService.Activate(name); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleDeactivateDefinition(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.definitionService.Deactivate(name); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondOKWithoutBody(w)
}
