package server

import (
	"errors"
	"strings"
	"unicode/utf8"

	"watchparty/internal/models"
)

// Inbound event payloads. Each payload validates itself after decoding;
// handlers drop or reject the event when validation fails.

type LoginPayload struct {
	Author   string           `json:"author"`
	Room     string           `json:"room"`
	Password string           `json:"password"`
	Anime    models.AnimeInfo `json:"anime"`
}

func (p *LoginPayload) Validate() error {
	p.Room = strings.TrimSpace(p.Room)
	p.Password = strings.TrimSpace(p.Password)

	if p.Author == "" || utf8.RuneCountInString(p.Author) > 1000 {
		return errors.New("Invalid user token")
	}
	if utf8.RuneCountInString(p.Room) < 2 {
		return errors.New("Room name must be at least 2 characters")
	}
	if utf8.RuneCountInString(p.Room) > 32 {
		return errors.New("Room name must be at most 32 characters")
	}
	if utf8.RuneCountInString(p.Password) < 2 {
		return errors.New("Password must be at least 2 characters")
	}
	if utf8.RuneCountInString(p.Password) > 32 {
		return errors.New("Password must be at most 32 characters")
	}
	if p.Anime.Slug == "" || utf8.RuneCountInString(p.Anime.Slug) > 500 {
		return errors.New("Invalid anime information")
	}
	return nil
}

type MessagePayload struct {
	Message string `json:"message"`
}

func (p *MessagePayload) Validate() error {
	p.Message = strings.TrimSpace(p.Message)
	if p.Message == "" {
		return errors.New("Message cannot be empty")
	}
	if utf8.RuneCountInString(p.Message) > 250 {
		return errors.New("Message must be at most 250 characters")
	}
	return nil
}

// TargetPayload names the subject of a moderation event by user id.
type TargetPayload struct {
	Target string `json:"target"`
}

func (p *TargetPayload) Validate() error {
	if p.Target == "" {
		return errors.New("Invalid target")
	}
	return nil
}

type ModControlPayload struct {
	Enabled *bool `json:"enabled"`
}

func (p *ModControlPayload) Validate() error {
	if p.Enabled == nil {
		return errors.New("Invalid control state")
	}
	return nil
}

type PlayerStatePayload struct {
	Playing *bool `json:"playing"`
}

func (p *PlayerStatePayload) Validate() error {
	if p.Playing == nil {
		return errors.New("Invalid player state")
	}
	return nil
}

type PlayerTimestampPayload struct {
	Timestamp *float64 `json:"timestamp"`
}

func (p *PlayerTimestampPayload) Validate() error {
	if p.Timestamp == nil || *p.Timestamp < 0 {
		return errors.New("Invalid player timestamp")
	}
	return nil
}
