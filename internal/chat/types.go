// Package chat defines the domain types shared by both bridge backends:
// messages, roster entries, presence, and the UI preference snapshot.
package chat

import "time"

// MessageType classifies a message per RFC 6121.
type MessageType string

const (
	TypeChat      MessageType = "chat"
	TypeGroupchat MessageType = "groupchat"
	TypeNormal    MessageType = "normal"
	TypeHeadline  MessageType = "headline"
	TypeError     MessageType = "error"
)

// Message is an immutable record of a sent or delivered message.
// Created by a backend on send or history fetch; never mutated afterwards.
type Message struct {
	ID     string      `json:"id"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Body   string      `json:"body"`
	SentAt time.Time   `json:"sentAt"`
	Type   MessageType `json:"type"`
	Thread string      `json:"thread,omitempty"`
	Read   bool        `json:"read"`
}

// Subscription is the roster subscription state (RFC 6121 section 2).
type Subscription string

const (
	SubNone   Subscription = "none"
	SubTo     Subscription = "to"
	SubFrom   Subscription = "from"
	SubBoth   Subscription = "both"
	SubRemove Subscription = "remove"
)

// PresenceShow is the presence <show/> value (RFC 6121 section 4.7.2.1).
type PresenceShow string

const (
	ShowAvailable   PresenceShow = "available"
	ShowChat        PresenceShow = "chat"
	ShowAway        PresenceShow = "away"
	ShowXA          PresenceShow = "xa"
	ShowDND         PresenceShow = "dnd"
	ShowUnavailable PresenceShow = "unavailable"
)

// ValidShow reports whether s is one of the closed presence show values.
func ValidShow(s PresenceShow) bool {
	switch s {
	case ShowAvailable, ShowChat, ShowAway, ShowXA, ShowDND, ShowUnavailable:
		return true
	}
	return false
}

// Presence is the volatile presence of one contact. Overwritten freely by
// presence events; identity lives on the enclosing RosterItem.
type Presence struct {
	Show   PresenceShow `json:"show"`
	Status string       `json:"status,omitempty"`
}

// RosterItem is one contact entry, keyed by bare JID.
type RosterItem struct {
	JID          string       `json:"jid"`
	Name         string       `json:"name,omitempty"`
	Group        string       `json:"group,omitempty"`
	Subscription Subscription `json:"subscription"`
	Presence     Presence     `json:"presence"`
}

// UiConfig is the backend-held preference snapshot, read once at startup
// by the settings state. Field names mirror the persisted config file.
type UiConfig struct {
	Notifications   bool   `toml:"notifications" json:"notifications"`
	Theme           string `toml:"theme" json:"theme"`
	Locale          string `toml:"locale" json:"locale"`
	ThemeName       string `toml:"theme_name" json:"themeName"`
	CustomThemePath string `toml:"custom_theme_path" json:"customThemePath,omitempty"`
}
