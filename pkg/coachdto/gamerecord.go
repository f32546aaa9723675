package coachdto

import "time"

// GameRecord is a finished game's critique log as handed to an archive store.
type GameRecord struct {
	ID        string     `json:"id"`
	Result    string     `json:"result,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	Critiques []Critique `json:"critiques"`
}
