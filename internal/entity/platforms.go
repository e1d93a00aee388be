package entity

import "github.com/DSorlov/smartthingsng/internal/broker"

// Platforms returns the entity platforms in their fixed declaration
// order. The order determines capability assignment priority: earlier
// platforms claim capabilities first.
func Platforms() []Platform {
	return []Platform{
		ButtonPlatform{},
		MediaPlayerPlatform{},
		NumberPlatform{},
		SelectPlatform{},
		SwitchPlatform{},
		VacuumPlatform{},
	}
}

// BrokerPlatforms adapts the platform list for broker construction.
func BrokerPlatforms(platforms []Platform) []broker.Platform {
	adapted := make([]broker.Platform, len(platforms))
	for i, p := range platforms {
		adapted[i] = p
	}
	return adapted
}
