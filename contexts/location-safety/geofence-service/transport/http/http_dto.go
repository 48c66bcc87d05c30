package httptransport

type SampleRequest struct {
	FamilyID string  `json:"family_id"`
	DeviceID string  `json:"device_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type ZoneOutcomeDTO struct {
	ZoneID     string  `json:"zone_id"`
	ZoneName   string  `json:"zone_name"`
	Transition string  `json:"transition"`
	DistanceM  float64 `json:"distance_m"`
	CommandID  string  `json:"command_id,omitempty"`
}

type SampleResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Outcomes []ZoneOutcomeDTO `json:"outcomes"`
	} `json:"data"`
}

type UpsertZoneRequest struct {
	ZoneID            string  `json:"zone_id,omitempty"`
	FamilyID          string  `json:"family_id"`
	Name              string  `json:"name"`
	CenterLat         float64 `json:"center_lat"`
	CenterLng         float64 `json:"center_lng"`
	RadiusM           float64 `json:"radius_m"`
	NotifyOnEnter     bool    `json:"notify_on_enter"`
	NotifyOnExit      bool    `json:"notify_on_exit"`
	AutoDefenseOnExit bool    `json:"auto_defense_on_exit"`
	Severity          string  `json:"severity,omitempty"`
}

type ZoneDTO struct {
	ZoneID            string  `json:"zone_id"`
	FamilyID          string  `json:"family_id"`
	Name              string  `json:"name"`
	CenterLat         float64 `json:"center_lat"`
	CenterLng         float64 `json:"center_lng"`
	RadiusM           float64 `json:"radius_m"`
	NotifyOnEnter     bool    `json:"notify_on_enter"`
	NotifyOnExit      bool    `json:"notify_on_exit"`
	AutoDefenseOnExit bool    `json:"auto_defense_on_exit"`
	Severity          string  `json:"severity"`
}

type ZoneResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Data      ZoneDTO `json:"data"`
}

type ZoneListResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Zones []ZoneDTO `json:"zones"`
	} `json:"data"`
}
