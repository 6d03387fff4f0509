package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eoffice/docflow/logger"
	"github.com/eoffice/docflow/metadata"
	"github.com/eoffice/docflow/model"
	"github.com/eoffice/docflow/persistence"
	"github.com/eoffice/docflow/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port              int
	definitionService metadata.DefinitionService
	executionService  *service.ExecutionService
	store             persistence.Storage
}

func NewServer(httpPort int, definitionService metadata.DefinitionService, executionService *service.ExecutionService, store persistence.Storage) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		definitionService: definitionService,
		executionService:  executionService,
		store:             store,
		Port:              httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/metadata/workflow", s.HandleSaveDefinition).Methods(http.MethodPost)
	router.HandleFunc("/metadata/workflow", s.HandleListDefinitions).Methods(http.MethodGet)
	router.HandleFunc("/metadata/workflow/{name}", s.HandleGetDefinition).Methods(http.MethodGet)
	router.HandleFunc("/metadata/workflow/{name}", s.HandleDeleteDefinition).Methods(http.MethodDelete)
	router.HandleFunc("/metadata/workflow/{name}/duplicate", s.HandleDuplicateDefinition).Methods(http.MethodPost)
	router.HandleFunc("/metadata/workflow/{name}/activate", s.HandleActivateDefinition).Methods(http.MethodPost)
	router.HandleFunc("/metadata/workflow/{name}/deactivate", s.HandleDeactivateDefinition).Methods(http.MethodPost)

	router.HandleFunc("/workflow/pending", s.HandlePendingActions).Methods(http.MethodGet)
	router.HandleFunc("/workflow/statistics", s.HandleStatistics).Methods(http.MethodGet)
	router.HandleFunc("/workflow", s.HandleStartWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{id}", s.HandleGetInstance).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}/action", s.HandleExecuteAction).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{id}/status", s.HandleStatus).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}/history", s.HandleHistory).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}/timeline", s.HandleTimeline).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}/path", s.HandlePath).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}/hold", s.HandleHold).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{id}/resume", s.HandleResume).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{id}/cancel", s.HandleCancel).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{id}/reassign", s.HandleReassign).Methods(http.MethodPost)

	router.HandleFunc("/tasks", s.HandleUserTasks).Methods(http.MethodGet)
	router.HandleFunc("/notifications", s.HandleUserNotifications).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

// actingUser reads the authenticated identity the gateway forwards.
func actingUser(r *http.Request) string {
	return r.Header.Get("X-User")
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(message)
	w.Write(res)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError maps the engine's error taxonomy onto status
// codes so clients can tell denial, conflict, and corruption apart.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var validationErr model.ValidationError
	var unauthorizedErr model.UnauthorizedError
	var transitionErr model.InvalidTransitionError
	var inconsistentErr model.InconsistentStateError
	var notFoundErr persistence.NotFoundError
	switch {
	case errors.As(err, &unauthorizedErr):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &transitionErr):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &inconsistentErr):
		respondWithError(w, http.StatusInternalServerError, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
