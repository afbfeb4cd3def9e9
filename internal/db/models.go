package db

import (
	"time"

	"github.com/google/uuid"
)

// Notification type tag. Rows are created by the reminder generator and
// dispatcher only; the dashboard just reads them and flips the read flag.
const TypeReminder = "reminder"

// Class reminder channels
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Goal reminder frequencies
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

// User is a dashboard account mirrored from the hosted auth provider.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationPreference holds per-user reminder settings, one row per
// user. Times are stored as "HH:MM" strings and compared verbatim
// against the truncated wall clock.
type NotificationPreference struct {
	UserID                  uuid.UUID `json:"user_id"`
	HabitRemindersEnabled   bool      `json:"habit_reminders_enabled"`
	HabitReminderTime       string    `json:"habit_reminder_time"`
	JournalRemindersEnabled bool      `json:"journal_reminders_enabled"`
	JournalReminderTime     string    `json:"journal_reminder_time"`
	MoodRemindersEnabled    bool      `json:"mood_reminders_enabled"`
	MoodReminderTime        string    `json:"mood_reminder_time"`
	GoalRemindersEnabled    bool      `json:"goal_reminders_enabled"`
	GoalReminderTime        string    `json:"goal_reminder_time"`
	GoalReminderFrequency   string    `json:"goal_reminder_frequency"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Notification is an in-app notification. Immutable once created except
// for the read flag.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Link      *string   `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// LiveClass is an upcoming class users can schedule reminders against.
type LiveClass struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	JoinURL   string    `json:"join_url"`
	CreatedAt time.Time `json:"created_at"`
}

// ClassReminder is a user-scheduled reminder for a live class. Mutated
// exactly once (sent false -> true) by the dispatcher, never deleted.
type ClassReminder struct {
	ID                    uuid.UUID `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	LiveClassID           uuid.UUID `json:"live_class_id"`
	NotificationType      string    `json:"notification_type"`
	ReminderMinutesBefore int       `json:"reminder_minutes_before"`
	ScheduledReminderTime time.Time `json:"scheduled_reminder_time"`
	Sent                  bool      `json:"sent"`
	CreatedAt             time.Time `json:"created_at"`
}

// DueReminder is a class reminder joined to its class and recipient,
// ready for dispatch.
type DueReminder struct {
	ClassReminder
	ClassTitle     string    `json:"class_title"`
	ClassStartTime time.Time `json:"class_start_time"`
	JoinURL        string    `json:"join_url"`
	UserEmail      string    `json:"user_email"`
	UserName       string    `json:"user_name"`
}

// RecordedSession is a synced catalog entry. video_url is the natural
// key for URL/webhook syncs; the Kajabi ID pair is the natural key for
// API pulls.
type RecordedSession struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	VideoURL         string    `json:"video_url"`
	Instructor       string    `json:"instructor"`
	Category         string    `json:"category"`
	Tags             []string  `json:"tags"`
	DurationMinutes  int       `json:"duration_minutes"`
	KajabiProductID  *string   `json:"kajabi_product_id,omitempty"`
	KajabiOfferingID *string   `json:"kajabi_offering_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Habit is a recurring daily practice tracked on the dashboard.
type Habit struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalEntry is a free-form dated journal record.
type JournalEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodLog is a mental-health check-in (1-10 scale plus optional note).
type MoodLog struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Mood      int       `json:"mood"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Goal is a longer-horizon objective.
type Goal struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}
