package models

// User is a learner known to the notification layer
type User struct {
	ID                  int64  `json:"id" db:"id"`
	ChatID              int64  `json:"chat_id" db:"chat_id"` // Telegram chat, 0 when not linked
	Username            string `json:"username" db:"username"`
	NotificationEnabled bool   `json:"notification_enabled" db:"notification_enabled"`
	NotificationHour    int    `json:"notification_hour" db:"notification_hour"` // Hour of day for reminders (0-23)
	ReviewsPerDay       int    `json:"reviews_per_day" db:"reviews_per_day"`
}
