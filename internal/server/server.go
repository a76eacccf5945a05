package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/cascade"
	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
	"github.com/mealbridge/rescue-service/internal/workflow"
)

// Workflow is the slice of the lifecycle engine the HTTP layer drives.
type Workflow interface {
	RegisterActor(ctx context.Context, in workflow.RegisterActorInput) (*repository.Actor, error)
	GetActor(ctx context.Context, id string) (*repository.Actor, error)

	CreateDonation(ctx context.Context, in workflow.CreateDonationInput) (*repository.Donation, error)
	GetDonation(ctx context.Context, id string) (*workflow.DonationView, error)
	ListAvailableDonations(ctx context.Context, limit int) ([]*workflow.DonationView, error)
	ListDonationsByDonor(ctx context.Context, donorID string) ([]*workflow.DonationView, error)
	CancelDonation(ctx context.Context, id string) (*repository.Donation, error)

	CreateClaim(ctx context.Context, in workflow.CreateClaimInput) (*repository.Claim, error)
	GetClaim(ctx context.Context, id string) (*repository.Claim, error)
	ListClaimsByDonation(ctx context.Context, donationID string) ([]*repository.Claim, error)
	ListClaimsByNGO(ctx context.Context, ngoID string) ([]*repository.Claim, error)
	RespondToClaim(ctx context.Context, claimID string, approve bool, message *string) (*repository.Claim, error)
	CancelClaim(ctx context.Context, claimID string) (*repository.Claim, error)

	AssignVolunteer(ctx context.Context, in workflow.AssignVolunteerInput) (*repository.VolunteerTask, error)
	GetTask(ctx context.Context, id string) (*workflow.TaskView, error)
	ListTasksByClaim(ctx context.Context, claimID string) ([]*workflow.TaskView, error)
	ListOverdueTasks(ctx context.Context) ([]*workflow.TaskView, error)
	UpdateTaskStatus(ctx context.Context, taskID string, in workflow.UpdateTaskInput) (*repository.VolunteerTask, error)
	CancelTask(ctx context.Context, taskID string) (*repository.VolunteerTask, error)

	GetPickupEvent(ctx context.Context, id string) (*repository.PickupEvent, error)
	UpdatePickupEventStatus(ctx context.Context, eventID string, in workflow.UpdatePickupEventInput) (*repository.PickupEvent, error)
	AppendLocationSample(ctx context.Context, eventID string, lat, lng float64) (*repository.PickupEvent, error)

	SubmitFeedback(ctx context.Context, in workflow.SubmitFeedbackInput) (*repository.Feedback, error)
	GetFeedback(ctx context.Context, id string) (*repository.Feedback, error)
	RespondToFeedback(ctx context.Context, feedbackID, response string) (*repository.Feedback, error)
}

// Moderation covers the feedback moderation and rating surface.
type Moderation interface {
	Publish(ctx context.Context, feedbackID string) (*repository.Feedback, error)
	Hide(ctx context.Context, feedbackID string) error
	Remove(ctx context.Context, feedbackID string) error
	Recompute(ctx context.Context, revieweeID string) (float64, int, error)
}

// ActorDeleter runs the cascading removal of an actor and its entities.
type ActorDeleter interface {
	DeleteActor(ctx context.Context, actorID string) (*cascade.Report, error)
}

type CredentialStore interface {
	ValidateCredentials(ctx context.Context, username, password string) (*repository.Actor, error)
}

// DonationReadCache is optional; a nil cache means every read hits the store.
type DonationReadCache interface {
	Get(ctx context.Context, id string) *repository.Donation
	Set(ctx context.Context, d *repository.Donation)
	Delete(ctx context.Context, id string)
}

type Config struct {
	Addr        string
	Workflow    Workflow
	Moderation  Moderation
	Cascades    ActorDeleter
	Credentials CredentialStore
	Cache       DonationReadCache
	Logger      *zap.Logger
}

type Server struct {
	workflow    Workflow
	moderation  Moderation
	cascades    ActorDeleter
	credentials CredentialStore
	cache       DonationReadCache
	logger      *zap.Logger
	audit       *AuditManager
	httpServer  *http.Server
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{
		workflow:    cfg.Workflow,
		moderation:  cfg.Moderation,
		cascades:    cfg.Cascades,
		credentials: cfg.Credentials,
		cache:       cfg.Cache,
		logger:      cfg.Logger,
		audit:       NewAuditManager(2, 5, 500*time.Millisecond, cfg.Logger),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.auditMiddleware, s.authMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	r.HandleFunc("/actors", s.handleRegisterActor).Methods(http.MethodPost).Name("registerActor")
	r.HandleFunc("/actors/{id}", s.handleGetActor).Methods(http.MethodGet).Name("getActor")
	r.HandleFunc("/actors/{id}", s.handleDeleteActor).Methods(http.MethodDelete).Name("deleteActor")
	r.HandleFunc("/actors/{id}/rating/recompute", s.handleRecomputeRating).Methods(http.MethodPost).Name("recomputeRating")

	r.HandleFunc("/donations", s.handleCreateDonation).Methods(http.MethodPost).Name("createDonation")
	r.HandleFunc("/donations", s.handleListAvailableDonations).Methods(http.MethodGet).Name("listAvailableDonations")
	r.HandleFunc("/donations/{id}", s.handleGetDonation).Methods(http.MethodGet).Name("getDonation")
	r.HandleFunc("/donations/{id}/cancel", s.handleCancelDonation).Methods(http.MethodPost).Name("cancelDonation")
	r.HandleFunc("/donations/{id}/claims", s.handleListClaimsByDonation).Methods(http.MethodGet).Name("listClaimsByDonation")
	r.HandleFunc("/donors/{id}/donations", s.handleListDonationsByDonor).Methods(http.MethodGet).Name("listDonationsByDonor")

	r.HandleFunc("/claims", s.handleCreateClaim).Methods(http.MethodPost).Name("createClaim")
	r.HandleFunc("/claims/{id}", s.handleGetClaim).Methods(http.MethodGet).Name("getClaim")
	r.HandleFunc("/claims/{id}/decision", s.handleClaimDecision).Methods(http.MethodPost).Name("claimDecision")
	r.HandleFunc("/claims/{id}/cancel", s.handleCancelClaim).Methods(http.MethodPost).Name("cancelClaim")
	r.HandleFunc("/claims/{id}/tasks", s.handleListTasksByClaim).Methods(http.MethodGet).Name("listTasksByClaim")
	r.HandleFunc("/ngos/{id}/claims", s.handleListClaimsByNGO).Methods(http.MethodGet).Name("listClaimsByNGO")

	r.HandleFunc("/tasks", s.handleAssignVolunteer).Methods(http.MethodPost).Name("assignVolunteer")
	r.HandleFunc("/tasks/overdue", s.handleListOverdueTasks).Methods(http.MethodGet).Name("listOverdueTasks")
	r.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet).Name("getTask")
	r.HandleFunc("/tasks/{id}/status", s.handleUpdateTaskStatus).Methods(http.MethodPost).Name("updateTaskStatus")
	r.HandleFunc("/tasks/{id}/cancel", s.handleCancelTask).Methods(http.MethodPost).Name("cancelTask")

	r.HandleFunc("/pickups/{id}", s.handleGetPickupEvent).Methods(http.MethodGet).Name("getPickupEvent")
	r.HandleFunc("/pickups/{id}/status", s.handleUpdatePickupStatus).Methods(http.MethodPost).Name("updatePickupStatus")
	r.HandleFunc("/pickups/{id}/locations", s.handleAppendLocation).Methods(http.MethodPost).Name("appendLocation")

	r.HandleFunc("/feedback", s.handleSubmitFeedback).Methods(http.MethodPost).Name("submitFeedback")
	r.HandleFunc("/feedback/{id}", s.handleGetFeedback).Methods(http.MethodGet).Name("getFeedback")
	r.HandleFunc("/feedback/{id}", s.handleRemoveFeedback).Methods(http.MethodDelete).Name("removeFeedback")
	r.HandleFunc("/feedback/{id}/response", s.handleRespondToFeedback).Methods(http.MethodPost).Name("respondToFeedback")
	r.HandleFunc("/feedback/{id}/publish", s.handlePublishFeedback).Methods(http.MethodPost).Name("publishFeedback")
	r.HandleFunc("/feedback/{id}/hide", s.handleHideFeedback).Methods(http.MethodPost).Name("hideFeedback")

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests and the
// audit pipeline.
func (s *Server) Run(ctx context.Context) error {
	s.audit.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	s.audit.Shutdown(shutdownCtx)
	return nil
}

func openEndpoint(r *http.Request) bool {
	if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
		return true
	}
	// registration has to work before the caller has credentials
	return r.URL.Path == "/actors" && r.Method == http.MethodPost
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="rescue-service"`)
			s.respondError(w, r, apperrors.New(apperrors.KindUnknown, "credentials required"), http.StatusUnauthorized)
			return
		}
		if _, err := s.credentials.ValidateCredentials(r.Context(), username, password); err != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="rescue-service"`)
			s.respondError(w, r, apperrors.New(apperrors.KindUnknown, "invalid credentials"), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actorView hides the credential hash from API responses.
type actorView struct {
	*repository.Actor
	PasswordHash string `json:"-"`
}

func (s *Server) handleRegisterActor(w http.ResponseWriter, r *http.Request) {
	var in workflow.RegisterActorInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	actor, err := s.workflow.RegisterActor(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusCreated, actorView{Actor: actor})
}

func (s *Server) handleGetActor(w http.ResponseWriter, r *http.Request) {
	actor, err := s.workflow.GetActor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, actorView{Actor: actor})
}

func (s *Server) handleDeleteActor(w http.ResponseWriter, r *http.Request) {
	report, err := s.cascades.DeleteActor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if report != nil {
			// partial cleanup: report what happened so the caller can retry
			s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":  "cascade incomplete, actor retained",
				"report": report,
			})
			return
		}
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleRecomputeRating(w http.ResponseWriter, r *http.Request) {
	average, total, err := s.moderation.Recompute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"average_rating": average,
		"total_ratings":  total,
	})
}

func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateDonationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	d, err := s.workflow.CreateDonation(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), d)
	}
	s.respondJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.cache != nil {
		if d := s.cache.Get(r.Context(), id); d != nil {
			s.respondJSON(w, http.StatusOK, workflow.NewDonationView(d, time.Now().UTC()))
			return
		}
	}
	view, err := s.workflow.GetDonation(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), view.Donation)
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListAvailableDonations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.respondError(w, r, apperrors.Newf(apperrors.KindValidation, "invalid limit %q", raw), 0)
			return
		}
		limit = parsed
	}
	views, err := s.workflow.ListAvailableDonations(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleListDonationsByDonor(w http.ResponseWriter, r *http.Request) {
	views, err := s.workflow.ListDonationsByDonor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleCancelDonation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.workflow.CancelDonation(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		s.cache.Delete(r.Context(), id)
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var in workflow.CreateClaimInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	c, err := s.workflow.CreateClaim(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	c, err := s.workflow.GetClaim(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleListClaimsByDonation(w http.ResponseWriter, r *http.Request) {
	claims, err := s.workflow.ListClaimsByDonation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, claims)
}

func (s *Server) handleListClaimsByNGO(w http.ResponseWriter, r *http.Request) {
	claims, err := s.workflow.ListClaimsByNGO(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, claims)
}

func (s *Server) handleClaimDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve bool    `json:"approve"`
		Message *string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	c, err := s.workflow.RespondToClaim(r.Context(), mux.Vars(r)["id"], req.Approve, req.Message)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		// approval flips the donation to claimed; drop the stale row
		s.cache.Delete(r.Context(), c.DonationID)
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleCancelClaim(w http.ResponseWriter, r *http.Request) {
	c, err := s.workflow.CancelClaim(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		s.cache.Delete(r.Context(), c.DonationID)
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleAssignVolunteer(w http.ResponseWriter, r *http.Request) {
	var in workflow.AssignVolunteerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	t, err := s.workflow.AssignVolunteer(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	view, err := s.workflow.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleListTasksByClaim(w http.ResponseWriter, r *http.Request) {
	views, err := s.workflow.ListTasksByClaim(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleListOverdueTasks(w http.ResponseWriter, r *http.Request) {
	views, err := s.workflow.ListOverdueTasks(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var in workflow.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	t, err := s.workflow.UpdateTaskStatus(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		s.cache.Delete(r.Context(), t.DonationID)
	}
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.workflow.CancelTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleGetPickupEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.workflow.GetPickupEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUpdatePickupStatus(w http.ResponseWriter, r *http.Request) {
	var in workflow.UpdatePickupEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	ev, err := s.workflow.UpdatePickupEventStatus(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if s.cache != nil {
		s.cache.Delete(r.Context(), ev.DonationID)
	}
	s.respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleAppendLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	ev, err := s.workflow.AppendLocationSample(r.Context(), mux.Vars(r)["id"], req.Latitude, req.Longitude)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, ev)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var in workflow.SubmitFeedbackInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	f, err := s.workflow.SubmitFeedback(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := s.workflow.GetFeedback(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleRespondToFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperrors.Wrap(apperrors.KindValidation, "decode request", err), 0)
		return
	}
	f, err := s.workflow.RespondToFeedback(r.Context(), mux.Vars(r)["id"], req.Response)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handlePublishFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := s.moderation.Publish(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleHideFeedback(w http.ResponseWriter, r *http.Request) {
	if err := s.moderation.Hide(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "hidden"})
}

func (s *Server) handleRemoveFeedback(w http.ResponseWriter, r *http.Request) {
	if err := s.moderation.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

// respondError maps workflow error kinds onto HTTP statuses. A non-zero
// status overrides the mapping.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	kind := apperrors.KindOf(err)
	if status == 0 {
		status = statusForKind(kind)
	}
	metrics.OperationErrorsTotal.WithLabelValues(operationName(r)).Inc()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind.String(),
	})
}

// operationName labels error metrics with the matched route name. Requests
// that never matched a route fall back to the method to keep the label set
// small.
func operationName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return r.Method
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindExpiredEntity:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
