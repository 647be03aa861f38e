package entities

import "strings"

// Preferences is the configuration bundle needed to reach the imagine backend.
type Preferences struct {
	SessionToken string `json:"session_token" yaml:"session_token"`
	ServerID     string `json:"server_id" yaml:"server_id"`
	ChannelID    string `json:"channel_id" yaml:"channel_id"`
}

// Trimmed returns the bundle with surrounding whitespace removed from every field.
func (p Preferences) Trimmed() Preferences {
	return Preferences{
		SessionToken: strings.TrimSpace(p.SessionToken),
		ServerID:     strings.TrimSpace(p.ServerID),
		ChannelID:    strings.TrimSpace(p.ChannelID),
	}
}

func (p Preferences) IsEmpty() bool {
	return p.SessionToken == "" && p.ServerID == "" && p.ChannelID == ""
}
