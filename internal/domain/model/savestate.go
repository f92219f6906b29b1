package model

import "time"

// SaveState is the save-status snapshot exposed to the UI. Error carries the
// user-facing message when Status is SaveStatusError.
type SaveState struct {
	Status    SaveStatus
	Error     string
	UpdatedAt time.Time
}
