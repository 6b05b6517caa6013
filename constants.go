package fetch

import "github.com/Comanx/go-fetch/internal/constants"

// Re-export constants for public API
const (
	DefaultMaxRequests = constants.DefaultMaxRequests
	DefaultNumChannels = constants.DefaultNumChannels
	DefaultNumLanes    = constants.DefaultNumLanes
	MaxChannels        = constants.MaxChannels
	MaxPath            = constants.MaxPath
	MaxUserData        = constants.MaxUserData
)
