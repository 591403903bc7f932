package domain

import (
	"fmt"
	"strings"
	"time"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range", l.Longitude)
	}
	return nil
}

type ProfileID int64

type NearbyProfile struct {
	ProfileID   ProfileID `json:"profile_id"`
	DisplayName string    `json:"display_name"`
	Age         *int      `json:"age,omitempty"`
	Distance    *float64  `json:"distance,omitempty"`
	OnlineUntil *int64    `json:"online_until,omitempty"`
	IsFavorite  bool      `json:"is_favorite"`
	IsBoosting  bool      `json:"is_boosting"`
}

type Message struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       ProfileID `json:"sender_id"`
	Timestamp      int64     `json:"timestamp"`
	Text           *string   `json:"text,omitempty"`
	Unsent         bool      `json:"unsent"`
}

type Conversation struct {
	ConversationID        string `json:"conversation_id"`
	Name                  string `json:"name"`
	UnreadCount           int    `json:"unread_count"`
	LastActivityTimestamp int64  `json:"last_activity_timestamp"`
}

type TapType int

const TapFlame TapType = 1

type TapInteraction struct {
	ProfileID   ProfileID `json:"profile_id"`
	DisplayName *string   `json:"display_name,omitempty"`
	Distance    *float64  `json:"distance,omitempty"`
	Timestamp   int64     `json:"timestamp"`
	TapType     TapType   `json:"tap_type"`
}

type ProfileImage struct {
	Hash    string `json:"hash"`
	URL     string `json:"url,omitempty"`
	Primary bool   `json:"primary"`
}

type ProfileViews struct {
	Total          int             `json:"total"`
	RecentViewers  []NearbyProfile `json:"recent_viewers"`
	PreviewViewers int             `json:"preview_viewers"`
}

type Profile struct {
	ProfileID    ProfileID      `json:"profile_id"`
	DisplayName  string         `json:"display_name"`
	AboutMe      string         `json:"about_me,omitempty"`
	Age          *int           `json:"age,omitempty"`
	Height       *float64       `json:"height,omitempty"`
	Weight       *float64       `json:"weight,omitempty"`
	ShowAge      bool           `json:"show_age"`
	ShowDistance bool           `json:"show_distance"`
	Images       []ProfileImage `json:"images,omitempty"`
}

type RewardedChats struct {
	Available int       `json:"available"`
	Used      int       `json:"used"`
	ResetsAt  time.Time `json:"resets_at"`
}

type UserSettings struct {
	Incognito          bool   `json:"incognito"`
	HideDistance       bool   `json:"hide_distance"`
	HideOnlineStatus   bool   `json:"hide_online_status"`
	PushNotifications  bool   `json:"push_notifications"`
	UnitSystem         string `json:"unit_system"`
	DiscoverableRadius int    `json:"discoverable_radius"`
}

const (
	maxDisplayNameLength = 15
	maxAboutMeLength     = 255
	minAge               = 18
	maxAge               = 99
)

// ProfileUpdate enumerates the profile fields that can be changed. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName  *string  `json:"display_name,omitempty"`
	AboutMe      *string  `json:"about_me,omitempty"`
	Age          *int     `json:"age,omitempty"`
	Height       *float64 `json:"height,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	ShowAge      *bool    `json:"show_age,omitempty"`
	ShowDistance *bool    `json:"show_distance,omitempty"`
}

func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.AboutMe == nil && u.Age == nil && u.Height == nil &&
		u.Weight == nil && u.ShowAge == nil && u.ShowDistance == nil
}

func (u ProfileUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("profile update has no fields")
	}
	if u.DisplayName != nil && len([]rune(strings.TrimSpace(*u.DisplayName))) > maxDisplayNameLength {
		return fmt.Errorf("display name longer than %d characters", maxDisplayNameLength)
	}
	if u.AboutMe != nil && len([]rune(*u.AboutMe)) > maxAboutMeLength {
		return fmt.Errorf("about me longer than %d characters", maxAboutMeLength)
	}
	if u.Age != nil && (*u.Age < minAge || *u.Age > maxAge) {
		return fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}
	if u.Height != nil && *u.Height <= 0 {
		return fmt.Errorf("height must be positive")
	}
	if u.Weight != nil && *u.Weight <= 0 {
		return fmt.Errorf("weight must be positive")
	}
	return nil
}

var unitSystems = map[string]struct{}{"metric": {}, "imperial": {}}

// SettingsUpdate enumerates the account settings that can be changed. Nil fields are left untouched.
type SettingsUpdate struct {
	Incognito          *bool   `json:"incognito,omitempty"`
	HideDistance       *bool   `json:"hide_distance,omitempty"`
	HideOnlineStatus   *bool   `json:"hide_online_status,omitempty"`
	PushNotifications  *bool   `json:"push_notifications,omitempty"`
	UnitSystem         *string `json:"unit_system,omitempty"`
	DiscoverableRadius *int    `json:"discoverable_radius,omitempty"`
}

func (u SettingsUpdate) Empty() bool {
	return u.Incognito == nil && u.HideDistance == nil && u.HideOnlineStatus == nil &&
		u.PushNotifications == nil && u.UnitSystem == nil && u.DiscoverableRadius == nil
}

func (u SettingsUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("settings update has no fields")
	}
	if u.UnitSystem != nil {
		if _, ok := unitSystems[*u.UnitSystem]; !ok {
			return fmt.Errorf("unsupported unit system %q", *u.UnitSystem)
		}
	}
	if u.DiscoverableRadius != nil && *u.DiscoverableRadius <= 0 {
		return fmt.Errorf("discoverable radius must be positive")
	}
	return nil
}

// ConnectionStatus summarizes the client's live state for status displays.
type ConnectionStatus struct {
	SessionState   SessionState
	SessionExpires time.Time
	CurrentProxy   string
	LastSuccessAt  time.Time
	LastFailureAt  time.Time
	LastFailure    string
}
