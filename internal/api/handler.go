package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/authapi"
	"github.com/beaconcoach/beacon/internal/catalog"
	"github.com/beaconcoach/beacon/internal/db"
	"github.com/beaconcoach/beacon/internal/metrics"
	"github.com/beaconcoach/beacon/internal/redis"
)

// PreferenceRepository reads and writes notification preferences.
type PreferenceRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*db.NotificationPreference, error)
	Upsert(ctx context.Context, pref *db.NotificationPreference) error
}

// NotificationRepository serves the in-app notification feed.
type NotificationRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}

// ReminderRepository schedules and lists class reminders.
type ReminderRepository interface {
	GetLiveClass(ctx context.Context, id uuid.UUID) (*db.LiveClass, error)
	CreateClassReminder(ctx context.Context, rem *db.ClassReminder) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*db.ClassReminder, error)
}

// UserRepository serves profile reads and writes.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName string, avatarURL *string) error
}

// ActivityRepository is the dashboard's habit/journal/mood/goal surface.
type ActivityRepository interface {
	ListHabits(ctx context.Context, userID uuid.UUID) ([]*db.Habit, error)
	CreateHabit(ctx context.Context, h *db.Habit) error
	CompleteHabit(ctx context.Context, habitID uuid.UUID) error
	CreateJournalEntry(ctx context.Context, e *db.JournalEntry) error
	ListJournalEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*db.JournalEntry, error)
	CreateMoodLog(ctx context.Context, m *db.MoodLog) error
	ListGoals(ctx context.Context, userID uuid.UUID) ([]*db.Goal, error)
	CreateGoal(ctx context.Context, g *db.Goal) error
	CompleteGoal(ctx context.Context, goalID uuid.UUID) error
}

// CatalogRepository lists synced sessions.
type CatalogRepository interface {
	List(ctx context.Context, limit, offset int) ([]*db.RecordedSession, error)
}

// SyncService runs catalog and contact syncs.
type SyncService interface {
	SyncSessions(ctx context.Context, inputs []catalog.SessionInput) catalog.Summary
	SyncURLs(ctx context.Context, urls []string) catalog.Summary
	SyncProducts(ctx context.Context) (catalog.Summary, error)
	SyncContacts(ctx context.Context) (catalog.ContactSummary, error)
	UpsertProduct(ctx context.Context, p catalog.Product, sum *catalog.Summary)
}

// MagicLinkService mints passwordless sign-in links.
type MagicLinkService interface {
	GenerateMagicLink(ctx context.Context, email string) (string, error)
}

// JobRunner is one reminder pass (generator or dispatcher).
type JobRunner interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// BannerFlags tracks the per-user daily banner dismissal.
type BannerFlags interface {
	Dismiss(ctx context.Context, userID uuid.UUID, now time.Time) error
	Dismissed(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error)
}

// Handler holds dependencies for the API handlers. Optional
// collaborators (sync, auth, banner, jobs) may be nil; their routes
// then answer 503.
type Handler struct {
	logger       *zap.Logger
	prefs        PreferenceRepository
	notifs       NotificationRepository
	reminders    ReminderRepository
	users        UserRepository
	activity     ActivityRepository
	sessions     CatalogRepository
	sync         SyncService
	magicLinks   MagicLinkService
	generator    JobRunner
	dispatcher   JobRunner
	banner       BannerFlags
	serviceToken string
}

// HandlerConfig wires the handler's collaborators.
type HandlerConfig struct {
	Prefs        PreferenceRepository
	Notifs       NotificationRepository
	Reminders    ReminderRepository
	Users        UserRepository
	Activity     ActivityRepository
	Sessions     CatalogRepository
	Sync         SyncService
	MagicLinks   MagicLinkService
	Generator    JobRunner
	Dispatcher   JobRunner
	Banner       BannerFlags
	ServiceToken string
}

// NewHandler creates an API handler.
func NewHandler(cfg HandlerConfig, logger *zap.Logger) *Handler {
	return &Handler{
		logger:       logger,
		prefs:        cfg.Prefs,
		notifs:       cfg.Notifs,
		reminders:    cfg.Reminders,
		users:        cfg.Users,
		activity:     cfg.Activity,
		sessions:     cfg.Sessions,
		sync:         cfg.Sync,
		magicLinks:   cfg.MagicLinks,
		generator:    cfg.Generator,
		dispatcher:   cfg.Dispatcher,
		banner:       cfg.Banner,
		serviceToken: cfg.ServiceToken,
	}
}

// Routes builds the chi router with all middleware attached.
func (h *Handler) Routes(limiter *redis.RateLimiter, healthCheck func(context.Context) error) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(CORS)
	r.Use(metrics.Middleware)
	r.Use(RequestLogger(h.logger))

	r.Get("/health", h.Health(healthCheck))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter, h.logger, IPKeyFunc))

		r.Get("/preferences/{userID}", h.GetPreferences)
		r.Put("/preferences/{userID}", h.PutPreferences)

		r.Get("/notifications", h.ListNotifications)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)

		r.Post("/class-reminders", h.CreateClassReminder)
		r.Get("/class-reminders", h.ListClassReminders)

		r.Get("/profile/{userID}", h.GetProfile)
		r.Put("/profile/{userID}", h.UpdateProfile)

		r.Get("/habits", h.ListHabits)
		r.Post("/habits", h.CreateHabit)
		r.Post("/habits/{id}/complete", h.CompleteHabit)

		r.Get("/journal", h.ListJournalEntries)
		r.Post("/journal", h.CreateJournalEntry)

		r.Post("/mood", h.CreateMoodLog)

		r.Get("/goals", h.ListGoals)
		r.Post("/goals", h.CreateGoal)
		r.Post("/goals/{id}/complete", h.CompleteGoal)

		r.Get("/banner/{userID}", h.GetBanner)
		r.Post("/banner/{userID}", h.DismissBanner)

		r.Get("/sessions", h.ListSessions)

		r.Post("/sync/products", h.SyncProducts)
		r.Post("/sync/sessions", h.SyncSessions)
		r.Post("/sync/urls", h.SyncURLs)
		r.Post("/sync/contacts", h.SyncContacts)

		r.Post("/auth/passwordless", h.PasswordlessAuth)

		r.Group(func(r chi.Router) {
			r.Use(ServiceAuth(h.serviceToken))
			r.Post("/jobs/generate-reminders", h.RunGenerator)
			r.Post("/jobs/send-email-reminders", h.RunDispatcher)
		})
	})

	return r
}

// Health handles GET /health.
func (h *Handler) Health(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				h.writeError(w, http.StatusServiceUnavailable, "dependency unhealthy: "+err.Error())
				return
			}
		}
		h.writeSuccess(w, map[string]any{"status": "ok"})
	}
}

// GetPreferences handles GET /v1/preferences/{userID}.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	pref, err := h.prefs.GetByUser(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no preferences found for user")
		return
	}
	if err != nil {
		h.logger.Error("failed to load preferences", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	h.writeSuccess(w, map[string]any{"preferences": pref})
}

type preferencesRequest struct {
	HabitRemindersEnabled   bool   `json:"habit_reminders_enabled"`
	HabitReminderTime       string `json:"habit_reminder_time"`
	JournalRemindersEnabled bool   `json:"journal_reminders_enabled"`
	JournalReminderTime     string `json:"journal_reminder_time"`
	MoodRemindersEnabled    bool   `json:"mood_reminders_enabled"`
	MoodReminderTime        string `json:"mood_reminder_time"`
	GoalRemindersEnabled    bool   `json:"goal_reminders_enabled"`
	GoalReminderTime        string `json:"goal_reminder_time"`
	GoalReminderFrequency   string `json:"goal_reminder_frequency"`
}

// PutPreferences handles PUT /v1/preferences/{userID}. One row per
// user, upserted whole.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	for _, at := range []string{req.HabitReminderTime, req.JournalReminderTime, req.MoodReminderTime, req.GoalReminderTime} {
		if at != "" && !validClockTime(at) {
			h.writeError(w, http.StatusBadRequest, "reminder times must be HH:MM")
			return
		}
	}
	if req.GoalReminderFrequency != "" &&
		req.GoalReminderFrequency != db.FrequencyDaily &&
		req.GoalReminderFrequency != db.FrequencyWeekly {
		h.writeError(w, http.StatusBadRequest, "goal_reminder_frequency must be daily or weekly")
		return
	}

	pref := &db.NotificationPreference{
		UserID:                  userID,
		HabitRemindersEnabled:   req.HabitRemindersEnabled,
		HabitReminderTime:       req.HabitReminderTime,
		JournalRemindersEnabled: req.JournalRemindersEnabled,
		JournalReminderTime:     req.JournalReminderTime,
		MoodRemindersEnabled:    req.MoodRemindersEnabled,
		MoodReminderTime:        req.MoodReminderTime,
		GoalRemindersEnabled:    req.GoalRemindersEnabled,
		GoalReminderTime:        req.GoalReminderTime,
		GoalReminderFrequency:   req.GoalReminderFrequency,
	}

	if err := h.prefs.Upsert(r.Context(), pref); err != nil {
		h.logger.Error("failed to save preferences", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	h.writeSuccess(w, map[string]any{"preferences": pref})
}

// ListNotifications handles GET /v1/notifications?user_id=&limit=&offset=.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	limit, offset := paginationParams(r, 50)

	notifs, err := h.notifs.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifs == nil {
		notifs = []*db.Notification{}
	}

	h.writeSuccess(w, map[string]any{"notifications": notifs})
}

// MarkNotificationRead handles POST /v1/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifs.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("failed to mark notification read", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	h.writeSuccess(w, map[string]any{})
}

type classReminderRequest struct {
	UserID                string `json:"user_id"`
	LiveClassID           string `json:"live_class_id"`
	NotificationType      string `json:"notification_type"`
	ReminderMinutesBefore int    `json:"reminder_minutes_before"`
}

// CreateClassReminder handles POST /v1/class-reminders. The reminder
// fires offset minutes before the class start; a start already in the
// past is allowed and becomes immediately due.
func (h *Handler) CreateClassReminder(w http.ResponseWriter, r *http.Request) {
	var req classReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	classID, err := uuid.Parse(req.LiveClassID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "live_class_id must be a valid UUID")
		return
	}
	if req.NotificationType != db.ChannelPush && req.NotificationType != db.ChannelEmail {
		h.writeError(w, http.StatusBadRequest, "notification_type must be push or email")
		return
	}
	if req.ReminderMinutesBefore != 5 && req.ReminderMinutesBefore != 15 {
		h.writeError(w, http.StatusBadRequest, "reminder_minutes_before must be 5 or 15")
		return
	}

	class, err := h.reminders.GetLiveClass(r.Context(), classID)
	if errors.Is(err, db.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "live class not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load live class", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load live class")
		return
	}

	rem := &db.ClassReminder{
		ID:                    uuid.New(),
		UserID:                userID,
		LiveClassID:           classID,
		NotificationType:      req.NotificationType,
		ReminderMinutesBefore: req.ReminderMinutesBefore,
		ScheduledReminderTime: class.StartTime.Add(-time.Duration(req.ReminderMinutesBefore) * time.Minute),
	}

	if err := h.reminders.CreateClassReminder(r.Context(), rem); err != nil {
		h.logger.Error("failed to create class reminder", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create class reminder")
		return
	}

	h.writeSuccess(w, map[string]any{"reminder": rem})
}

// ListClassReminders handles GET /v1/class-reminders?user_id=.
func (h *Handler) ListClassReminders(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	rems, err := h.reminders.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list class reminders", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list class reminders")
		return
	}
	if rems == nil {
		rems = []*db.ClassReminder{}
	}

	h.writeSuccess(w, map[string]any{"reminders": rems})
}

type passwordlessRequest struct {
	Email string `json:"email"`
}

// PasswordlessAuth handles POST /v1/auth/passwordless. The credential
// triple is extracted from the generated magic-link URL; the link
// itself is never returned.
func (h *Handler) PasswordlessAuth(w http.ResponseWriter, r *http.Request) {
	if h.magicLinks == nil {
		h.writeError(w, http.StatusServiceUnavailable, "auth provider is not configured")
		return
	}

	var req passwordlessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	link, err := h.magicLinks.GenerateMagicLink(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("magic link generation failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "auth provider error: "+err.Error())
		return
	}

	tokens, err := authapi.ExtractTokens(link)
	if err != nil {
		h.logger.Error("token extraction failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "auth provider returned an unusable link")
		return
	}

	h.writeSuccess(w, map[string]any{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"type":          tokens.Type,
	})
}

// RunGenerator handles POST /v1/jobs/generate-reminders.
func (h *Handler) RunGenerator(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		h.writeError(w, http.StatusServiceUnavailable, "generator is not configured")
		return
	}

	n, err := h.generator.Run(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("generator pass failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "generator pass failed")
		return
	}

	h.writeSuccess(w, map[string]any{"generated": n})
}

// RunDispatcher handles POST /v1/jobs/send-email-reminders.
func (h *Handler) RunDispatcher(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		h.writeError(w, http.StatusServiceUnavailable, "dispatcher is not configured")
		return
	}

	n, err := h.dispatcher.Run(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("dispatch pass failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "dispatch pass failed")
		return
	}

	h.writeSuccess(w, map[string]any{"sent": n})
}

// --- helpers ---

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func paginationParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// validClockTime checks the HH:MM shape the generator compares against.
func validClockTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

func (h *Handler) writeSuccess(w http.ResponseWriter, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
