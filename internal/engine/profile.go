// README: Named travel profiles selecting engine cost weights.
package engine

import (
	"errors"
	"strings"
)

type Profile string

const (
	ProfileCar  Profile = "car"
	ProfileBike Profile = "bike"
	ProfileWalk Profile = "walk"
	ProfileHike Profile = "hike"
	ProfileSki  Profile = "ski"
)

var ErrUnknownProfile = errors.New("unknown route profile")

// Profiles lists every profile in menu order.
var Profiles = []Profile{ProfileCar, ProfileBike, ProfileWalk, ProfileHike, ProfileSki}

// ParseProfile maps a profile name to a Profile. "cycle" is accepted for bike
// because some map files name the bike profile that way.
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "car", "drive":
		return ProfileCar, nil
	case "bike", "cycle", "bicycle":
		return ProfileBike, nil
	case "walk":
		return ProfileWalk, nil
	case "hike":
		return ProfileHike, nil
	case "ski":
		return ProfileSki, nil
	default:
		return "", ErrUnknownProfile
	}
}

// Title is the menu label for p.
func (p Profile) Title() string {
	switch p {
	case ProfileCar:
		return "Car"
	case ProfileBike:
		return "Bike"
	case ProfileWalk:
		return "Walk"
	case ProfileHike:
		return "Hike"
	case ProfileSki:
		return "Ski"
	default:
		return "Unknown"
	}
}
