package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragbox-backend/internal/agent"
	"github.com/connexus-ai/ragbox-backend/internal/apperr"
	"github.com/connexus-ai/ragbox-backend/internal/config"
	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/escalation"
	"github.com/connexus-ai/ragbox-backend/internal/ingest"
	"github.com/connexus-ai/ragbox-backend/internal/llm"
	"github.com/connexus-ai/ragbox-backend/internal/metering"
	"github.com/connexus-ai/ragbox-backend/internal/observability"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
	"github.com/connexus-ai/ragbox-backend/internal/store/postgres"
	"github.com/connexus-ai/ragbox-backend/internal/store/rediskv"
	"github.com/connexus-ai/ragbox-backend/internal/sweeper"
)

const Version = "0.1.0"

// deps holds every wired collaborator a handler needs. It exists purely to
// keep newRouter's closures short; this module's HTTP layer is thin
// illustrative wiring, not a feature in its own right (spec §6).
type deps struct {
	cfg        *config.Config
	tenants    *postgres.TenantStore
	sessions   *postgres.SessionStore
	documents  *postgres.DocumentStore
	turns      *agent.Turns
	pipeline   *ingest.Pipeline
	usage      *metering.Usage
	metricsReg *prometheus.Registry
}

func newRouter(d *deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":"%s"}`, Version)
	})

	r.Handle("/metrics", observability.Handler(d.metricsReg))

	r.Post("/v1/sessions", d.createSession)
	r.Post("/v1/sessions/{sessionID}/messages", d.postMessage)
	r.Post("/v1/documents", d.createDocument)

	return r
}

type createSessionRequest struct {
	TenantID       string `json:"tenant_id"`
	ExternalUserID string `json:"external_user_id"`
}

func (d *deps) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidSession, "malformed request body"))
		return
	}

	tenant, err := d.tenants.GetByID(r.Context(), req.TenantID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.TenantNotFound, req.TenantID, err))
		return
	}
	if tenant == nil {
		writeError(w, apperr.New(apperr.TenantNotFound, req.TenantID))
		return
	}
	if !tenant.Active {
		writeError(w, apperr.New(apperr.TenantInactive, tenant.ID))
		return
	}

	session := &domain.Session{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		ExternalUserID: req.ExternalUserID,
		StartedAt:      time.Now().UTC(),
		Status:         domain.SessionActive,
	}
	if err := d.sessions.Create(r.Context(), session); err != nil {
		writeError(w, apperr.Wrap(apperr.RelationalStoreUnavailable, "create session", err))
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

type postMessageRequest struct {
	Message string `json:"message"`
}

func (d *deps) postMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidSession, "malformed request body"))
		return
	}

	session, err := d.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.InvalidSession, sessionID, err))
		return
	}
	if session == nil {
		writeError(w, apperr.New(apperr.InvalidSession, sessionID))
		return
	}
	if session.Status != domain.SessionActive {
		writeError(w, apperr.New(apperr.SessionInactive, string(session.Status)))
		return
	}

	tenant, err := d.tenants.GetByID(r.Context(), session.TenantID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.TenantNotFound, session.TenantID, err))
		return
	}
	if tenant == nil {
		writeError(w, apperr.New(apperr.TenantNotFound, session.TenantID))
		return
	}

	out, err := d.turns.HandleTurn(r.Context(), session.ID, tenant.ID, req.Message, tenant.Config)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.EscalationFailed, "handle turn", err))
		return
	}

	writeJSON(w, http.StatusOK, out)
}

type createDocumentRequest struct {
	TenantID string `json:"tenant_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}

func (d *deps) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.InvalidFileType, "malformed request body"))
		return
	}

	doc := &domain.KnowledgeDocument{
		ID:         uuid.NewString(),
		TenantID:   req.TenantID,
		Filename:   req.Filename,
		Version:    1,
		IsActive:   true,
		IngestedAt: time.Now().UTC(),
		Status:     domain.DocumentProcessing,
	}
	if err := d.documents.Create(r.Context(), doc); err != nil {
		writeError(w, apperr.Wrap(apperr.RelationalStoreUnavailable, "create document", err))
		return
	}

	// Ingestion runs detached from the request lifetime (spec §5): the
	// caller gets the document row back in Processing status and polls
	// GetByID for the terminal Ready/Failed state.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := d.pipeline.Ingest(ctx, doc.ID, doc.TenantID, req.FilePath, req.Filename, doc.Version); err != nil {
			slog.Error("ingest failed", "document_id", doc.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *apperr.Error) {
	slog.Warn("request failed", "kind", err.Kind, "error", err)
	writeJSON(w, err.HTTPStatus(), map[string]string{
		"error":   string(err.Kind),
		"message": err.Message,
	})
}

func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

// build wires every collaborator into a *deps, the direct analogue of what
// a dependency-injection container would do in a larger service.
func build(ctx context.Context, cfg *config.Config) (*deps, *sweeper.Sweeper, func(), error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build: connect database: %w", err)
	}

	kv, err := rediskv.New(ctx, rediskv.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("build: connect redis: %w", err)
	}

	vertex, err := llm.NewVertexProvider(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel, cfg.EmbeddingModel)
	if err != nil {
		pool.Close()
		kv.Close()
		return nil, nil, nil, fmt.Errorf("build: init vertex provider: %w", err)
	}

	var model ports.LanguageModel = vertex
	if cfg.BYOLLMAPIKey != "" {
		byollm := llm.NewBYOLLMProvider(cfg.BYOLLMAPIKey, cfg.BYOLLMBaseURL, cfg.BYOLLMModel)
		model = llm.NewComposite(vertex, byollm)
	}

	metricsReg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(metricsReg)

	tenants := postgres.NewTenantStore(pool)
	sessions := postgres.NewSessionStore(pool)
	messages := postgres.NewMessageStore(pool)
	billing := postgres.NewBillingStore(pool)
	documents := postgres.NewDocumentStore(pool)
	vectors := postgres.NewVectorIndex(pool)

	tok, err := ingest.NewTokenizer()
	if err != nil {
		pool.Close()
		kv.Close()
		return nil, nil, nil, fmt.Errorf("build: init tokenizer: %w", err)
	}

	pipeline := ingest.NewPipeline(
		documents,
		ingest.PlaintextParser{},
		ingest.NewChunker(tok),
		ingest.NewEnricher(model),
		ingest.NewEmbedder(model, vectors),
		kv,
		metrics,
	)

	lexical := retrieval.NewBM25Index(vectors, kv)
	rerank := retrieval.NewRerank(retrieval.NoopReranker{})
	retriever := retrieval.NewRetriever(model, vectors, lexical, rerank, metrics)

	idleTimeout := time.Duration(cfg.IdleSessionTimeoutMinutes) * time.Minute
	memory := agent.NewMemory(kv, idleTimeout)
	usage := metering.New(kv, billing, idleTimeout)
	dispatcher := escalation.NewWebhookDispatcher(billing, metrics)
	escalator := escalation.New(sessions, messages, memory, dispatcher)
	turns := agent.NewTurns(model, retriever, messages, memory, escalator)

	sw := sweeper.New(sessions, usage, idleTimeout, metrics)

	d := &deps{
		cfg:        cfg,
		tenants:    tenants,
		sessions:   sessions,
		documents:  documents,
		turns:      turns,
		pipeline:   pipeline,
		usage:      usage,
		metricsReg: metricsReg,
	}

	cleanup := func() {
		kv.Close()
		pool.Close()
	}

	return d, sw, cleanup, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, sw, cleanup, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	go sw.Run(context.Background())

	router := newRouter(d)
	srv := &http.Server{
		Addr:         ":" + getPort(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ragbox-backend v%s starting on %s", Version, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Println("received shutdown signal, shutting down gracefully")
	case err := <-errCh:
		sw.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	sw.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Println("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
