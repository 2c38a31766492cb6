package pkg

import "github.com/google/uuid"

// GeneratePlayerID - generates a unique identifier for a player.
func GeneratePlayerID() string {
	return uuid.NewString()
}

// GenerateGameID - generates a unique identifier for the room.
func GenerateGameID() string {
	return uuid.NewString()
}
