package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/mcclellann/emiTracker/pkg/config"
	"github.com/mcclellann/emiTracker/pkg/registry"
	"github.com/mcclellann/emiTracker/pkg/store"
)

// Server serializes every request onto the registry and its session.
type Server struct {
	mu       sync.Mutex
	registry *registry.Registry
	storage  store.Storage // Keep a reference to the storage to close it
	logger   *logrus.Logger
}

func NewServer(s store.Storage, logger *logrus.Logger) (*Server, error) {
	reg, err := registry.New(s, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		registry: reg,
		storage:  s,
		logger:   logger,
	}, nil
}

// Router registers every route of the API.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/health", s.healthHandler).Methods("GET")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/activate", s.activateLoanHandler).Methods("POST")

	current := router.PathPrefix("/current").Subrouter()
	current.HandleFunc("", s.currentHandler).Methods("GET")
	current.HandleFunc("/parameters", s.parametersHandler).Methods("PUT")
	current.HandleFunc("/schedule", s.scheduleHandler).Methods("GET")
	current.HandleFunc("/schedule", s.generateHandler).Methods("POST")
	current.HandleFunc("/schedule/{month:[0-9]+}/rate", s.rowRateHandler).Methods("PUT")
	current.HandleFunc("/schedule/{month:[0-9]+}/paid", s.rowPaidHandler).Methods("PUT")
	current.HandleFunc("/rate-change", s.rateChangeHandler).Methods("POST")
	current.HandleFunc("/{kind:prepayments|charges}", s.ledgerHandler).Methods("GET")
	current.HandleFunc("/{kind:prepayments|charges}/{month:[0-9]+}", s.addEntryHandler).Methods("POST")
	current.HandleFunc("/{kind:prepayments|charges}/{month:[0-9]+}", s.clearEntriesHandler).Methods("DELETE")
	current.HandleFunc("/{kind:prepayments|charges}/{month:[0-9]+}/{index:[0-9]+}", s.editEntryHandler).Methods("PUT")
	current.HandleFunc("/{kind:prepayments|charges}/{month:[0-9]+}/{index:[0-9]+}", s.deleteEntryHandler).Methods("DELETE")
	current.HandleFunc("/savings", s.savingsHandler).Methods("GET")
	current.HandleFunc("/years", s.yearsHandler).Methods("GET")
	current.HandleFunc("/years/{year:[0-9]+}", s.yearHandler).Methods("GET")
	current.HandleFunc("/details/{page:payments|prepayments|charges}", s.detailsHandler).Methods("GET")
	current.HandleFunc("/save", s.saveHandler).Methods("POST")
	current.HandleFunc("/export", s.exportHandler).Methods("GET")
	current.HandleFunc("/export/{page:payments|prepayments|charges}", s.exportDetailsHandler).Methods("GET")
	current.HandleFunc("/import", s.importHandler).Methods("POST")

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("Request handled")
	})
}

// Close persists the current loan and releases the storage.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry.Current() != nil {
		if err := s.registry.Save(); err != nil {
			s.logger.WithError(err).Error("Failed to save current loan")
		}
	}
	return s.storage.Close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.NewLogger()

	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to initialize SQLite store: %v", err)
	}

	server, err := NewServer(sqliteStore, logger)
	if err != nil {
		sqliteStore.Close()
		logger.Fatalf("Failed to restore loans: %v", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "db": cfg.DBPath}).Info("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
}
