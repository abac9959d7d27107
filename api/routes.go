package api

import (
	"fmt"

	"github.com/gorilla/mux"

	"github.com/garnizeh/resource/internal/assignment"
	"github.com/garnizeh/resource/internal/config"
	"github.com/garnizeh/resource/internal/db"
	"github.com/garnizeh/resource/internal/repository/sqlite"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, database *db.DB) (*mux.Router, error) {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Repository and coordinator
	repo := sqlite.New(database, logger)
	coordinator := assignment.New(repo, logger, cfg.Coordinator.MaxRetries, cfg.Coordinator.Backoff)

	v, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("load request schemas: %w", err)
	}

	// Create handlers
	systemHandler := &SystemHandler{}
	engineersHandler := NewEngineersHandler(repo, repo, coordinator, v)
	projectsHandler := NewProjectsHandler(repo, repo, repo, coordinator, v)
	assignmentsHandler := NewAssignmentsHandler(coordinator, v)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Engineer endpoints
	apiV1.HandleFunc("/engineers", engineersHandler.CreateEngineer).Methods("POST")
	apiV1.HandleFunc("/engineers", engineersHandler.ListEngineers).Methods("GET")
	apiV1.HandleFunc("/engineers/{id}", engineersHandler.GetEngineer).Methods("GET")
	apiV1.HandleFunc("/engineers/{id}", engineersHandler.UpdateEngineer).Methods("PATCH")
	apiV1.HandleFunc("/engineers/{id}/deactivate", engineersHandler.DeactivateEngineer).Methods("POST")
	apiV1.HandleFunc("/engineers/{id}/capacity", engineersHandler.GetCapacity).Methods("GET")
	apiV1.HandleFunc("/engineers/{id}/assignments", engineersHandler.ListEngineerAssignments).Methods("GET")

	// Project endpoints
	apiV1.HandleFunc("/projects", projectsHandler.CreateProject).Methods("POST")
	apiV1.HandleFunc("/projects", projectsHandler.ListProjects).Methods("GET")
	apiV1.HandleFunc("/projects/{id}", projectsHandler.GetProject).Methods("GET")
	apiV1.HandleFunc("/projects/{id}", projectsHandler.UpdateProject).Methods("PATCH")
	apiV1.HandleFunc("/projects/{id}", projectsHandler.DeleteProject).Methods("DELETE")
	apiV1.HandleFunc("/projects/{id}/team", projectsHandler.GetTeam).Methods("GET")

	// Assignment endpoints
	apiV1.HandleFunc("/projects/{id}/assignments", assignmentsHandler.CreateAssignment).Methods("POST")
	apiV1.HandleFunc("/projects/{id}/assignments/{engineerId}", assignmentsHandler.UpdateAssignment).Methods("PATCH")
	apiV1.HandleFunc("/projects/{id}/assignments/{engineerId}", assignmentsHandler.DeleteAssignment).Methods("DELETE")

	return r, nil
}
