package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/db"
)

// GetProfile handles GET /v1/profile/{userID}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load profile", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	h.writeSuccess(w, map[string]any{"profile": user})
}

type profileRequest struct {
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateProfile handles PUT /v1/profile/{userID}.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.FullName == "" {
		h.writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	if err := h.users.UpdateProfile(r.Context(), userID, req.FullName, req.AvatarURL); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to update profile", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	h.writeSuccess(w, map[string]any{})
}

// ListHabits handles GET /v1/habits?user_id=.
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	habits, err := h.activity.ListHabits(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list habits", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}
	if habits == nil {
		habits = []*db.Habit{}
	}

	h.writeSuccess(w, map[string]any{"habits": habits})
}

type habitRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// CreateHabit handles POST /v1/habits.
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	habit := &db.Habit{ID: uuid.New(), UserID: userID, Name: req.Name, Active: true}
	if err := h.activity.CreateHabit(r.Context(), habit); err != nil {
		h.logger.Error("failed to create habit", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create habit")
		return
	}

	h.writeSuccess(w, map[string]any{"habit": habit})
}

// CompleteHabit handles POST /v1/habits/{id}/complete. Completing the
// same habit twice in one day is a no-op.
func (h *Handler) CompleteHabit(w http.ResponseWriter, r *http.Request) {
	habitID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.activity.CompleteHabit(r.Context(), habitID); err != nil {
		h.logger.Error("failed to complete habit", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to complete habit")
		return
	}

	h.writeSuccess(w, map[string]any{})
}

type journalRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// CreateJournalEntry handles POST /v1/journal.
func (h *Handler) CreateJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	if req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	entry := &db.JournalEntry{ID: uuid.New(), UserID: userID, Content: req.Content}
	if err := h.activity.CreateJournalEntry(r.Context(), entry); err != nil {
		h.logger.Error("failed to create journal entry", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create journal entry")
		return
	}

	h.writeSuccess(w, map[string]any{"entry": entry})
}

// ListJournalEntries handles GET /v1/journal?user_id=&limit=&offset=.
func (h *Handler) ListJournalEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	limit, offset := paginationParams(r, 20)

	entries, err := h.activity.ListJournalEntries(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list journal entries", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list journal entries")
		return
	}
	if entries == nil {
		entries = []*db.JournalEntry{}
	}

	h.writeSuccess(w, map[string]any{"entries": entries})
}

type moodRequest struct {
	UserID string  `json:"user_id"`
	Mood   int     `json:"mood"`
	Note   *string `json:"note"`
}

// CreateMoodLog handles POST /v1/mood.
func (h *Handler) CreateMoodLog(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	if req.Mood < 1 || req.Mood > 10 {
		h.writeError(w, http.StatusBadRequest, "mood must be between 1 and 10")
		return
	}

	log := &db.MoodLog{ID: uuid.New(), UserID: userID, Mood: req.Mood, Note: req.Note}
	if err := h.activity.CreateMoodLog(r.Context(), log); err != nil {
		h.logger.Error("failed to create mood log", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create mood log")
		return
	}

	h.writeSuccess(w, map[string]any{"mood_log": log})
}

// ListGoals handles GET /v1/goals?user_id=.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}

	goals, err := h.activity.ListGoals(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list goals", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list goals")
		return
	}
	if goals == nil {
		goals = []*db.Goal{}
	}

	h.writeSuccess(w, map[string]any{"goals": goals})
}

type goalRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

// CreateGoal handles POST /v1/goals.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "user_id must be a valid UUID")
		return
	}
	if req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	goal := &db.Goal{ID: uuid.New(), UserID: userID, Title: req.Title}
	if err := h.activity.CreateGoal(r.Context(), goal); err != nil {
		h.logger.Error("failed to create goal", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create goal")
		return
	}

	h.writeSuccess(w, map[string]any{"goal": goal})
}

// CompleteGoal handles POST /v1/goals/{id}/complete.
func (h *Handler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	goalID, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.activity.CompleteGoal(r.Context(), goalID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "goal not found")
			return
		}
		h.logger.Error("failed to complete goal", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to complete goal")
		return
	}

	h.writeSuccess(w, map[string]any{})
}

// GetBanner handles GET /v1/banner/{userID}: has the user dismissed
// today's banner?
func (h *Handler) GetBanner(w http.ResponseWriter, r *http.Request) {
	if h.banner == nil {
		h.writeError(w, http.StatusServiceUnavailable, "banner state is not configured")
		return
	}

	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	dismissed, err := h.banner.Dismissed(r.Context(), userID, time.Now())
	if err != nil {
		h.logger.Error("failed to read banner state", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to read banner state")
		return
	}

	h.writeSuccess(w, map[string]any{"dismissed": dismissed})
}

// DismissBanner handles POST /v1/banner/{userID}. The flag resets at
// the next midnight.
func (h *Handler) DismissBanner(w http.ResponseWriter, r *http.Request) {
	if h.banner == nil {
		h.writeError(w, http.StatusServiceUnavailable, "banner state is not configured")
		return
	}

	userID, ok := h.pathUUID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.banner.Dismiss(r.Context(), userID, time.Now()); err != nil {
		h.logger.Error("failed to dismiss banner", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to dismiss banner")
		return
	}

	h.writeSuccess(w, map[string]any{})
}
