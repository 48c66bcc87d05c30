package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"warden/contexts/location-safety/geofence-service/domain/entities"
	"warden/contexts/location-safety/geofence-service/ports"
)

type geofenceZoneModel struct {
	ZoneID            string `gorm:"primaryKey;column:zone_id"`
	FamilyID          string `gorm:"column:family_id;index"`
	Name              string
	CenterLat         float64
	CenterLng         float64
	RadiusM           float64 `gorm:"column:radius_m"`
	NotifyOnEnter     bool
	NotifyOnExit      bool
	AutoDefenseOnExit bool
	Severity          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (geofenceZoneModel) TableName() string { return "geofence_zones" }

type deviceZoneStateModel struct {
	DeviceID         string `gorm:"primaryKey;column:device_id"`
	ZoneID           string `gorm:"primaryKey;column:zone_id"`
	FamilyID         string `gorm:"column:family_id;index"`
	IsInside         bool
	LastDistanceM    float64 `gorm:"column:last_distance_m"`
	LastTransitionAt time.Time
	UpdatedAt        time.Time
}

func (deviceZoneStateModel) TableName() string { return "device_zone_states" }

type Repository struct {
	db *gorm.DB
}

var _ ports.ZoneRepository = (*Repository)(nil)
var _ ports.StateRepository = (*Repository)(nil)

func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&geofenceZoneModel{}, &deviceZoneStateModel{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) UpsertZone(ctx context.Context, zone entities.Zone) error {
	model := geofenceZoneModel{
		ZoneID:            zone.ZoneID,
		FamilyID:          zone.FamilyID,
		Name:              zone.Name,
		CenterLat:         zone.CenterLat,
		CenterLng:         zone.CenterLng,
		RadiusM:           zone.RadiusM,
		NotifyOnEnter:     zone.NotifyOnEnter,
		NotifyOnExit:      zone.NotifyOnExit,
		AutoDefenseOnExit: zone.AutoDefenseOnExit,
		Severity:          zone.Severity,
		CreatedAt:         zone.CreatedAt.UTC(),
		UpdatedAt:         zone.UpdatedAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "zone_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}

func (r *Repository) ListZonesByFamily(ctx context.Context, familyID string) ([]entities.Zone, error) {
	var models []geofenceZoneModel
	err := r.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	zones := make([]entities.Zone, 0, len(models))
	for _, model := range models {
		zones = append(zones, entities.Zone{
			ZoneID:            model.ZoneID,
			FamilyID:          model.FamilyID,
			Name:              model.Name,
			CenterLat:         model.CenterLat,
			CenterLng:         model.CenterLng,
			RadiusM:           model.RadiusM,
			NotifyOnEnter:     model.NotifyOnEnter,
			NotifyOnExit:      model.NotifyOnExit,
			AutoDefenseOnExit: model.AutoDefenseOnExit,
			Severity:          model.Severity,
			CreatedAt:         model.CreatedAt.UTC(),
			UpdatedAt:         model.UpdatedAt.UTC(),
		})
	}
	return zones, nil
}

func (r *Repository) GetState(ctx context.Context, deviceID string, zoneID string) (entities.DeviceZoneState, bool, error) {
	var model deviceZoneStateModel
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND zone_id = ?", deviceID, zoneID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.DeviceZoneState{}, false, nil
	}
	if err != nil {
		return entities.DeviceZoneState{}, false, err
	}
	return entities.DeviceZoneState{
		DeviceID:         model.DeviceID,
		ZoneID:           model.ZoneID,
		FamilyID:         model.FamilyID,
		IsInside:         model.IsInside,
		LastDistanceM:    model.LastDistanceM,
		LastTransitionAt: model.LastTransitionAt.UTC(),
		UpdatedAt:        model.UpdatedAt.UTC(),
	}, true, nil
}

func (r *Repository) SaveState(ctx context.Context, state entities.DeviceZoneState) error {
	model := deviceZoneStateModel{
		DeviceID:         state.DeviceID,
		ZoneID:           state.ZoneID,
		FamilyID:         state.FamilyID,
		IsInside:         state.IsInside,
		LastDistanceM:    state.LastDistanceM,
		LastTransitionAt: state.LastTransitionAt.UTC(),
		UpdatedAt:        state.UpdatedAt.UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "zone_id"}},
			UpdateAll: true,
		}).
		Create(&model).Error
}
