package entities

import "time"

// Zone is a circular safe or restricted area watched for a family.
type Zone struct {
	ZoneID            string
	FamilyID          string
	Name              string
	CenterLat         float64
	CenterLng         float64
	RadiusM           float64
	NotifyOnEnter     bool
	NotifyOnExit      bool
	AutoDefenseOnExit bool
	Severity          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (z Zone) Valid() bool {
	return z.FamilyID != "" &&
		z.Name != "" &&
		z.RadiusM > 0 &&
		z.CenterLat >= -90 && z.CenterLat <= 90 &&
		z.CenterLng >= -180 && z.CenterLng <= 180
}

// DeviceZoneState is the last known containment of a device for one
// zone. A missing row means the device is outside.
type DeviceZoneState struct {
	DeviceID         string
	ZoneID           string
	FamilyID         string
	IsInside         bool
	LastDistanceM    float64
	LastTransitionAt time.Time
	UpdatedAt        time.Time
}
