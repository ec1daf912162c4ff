package model

import (
	"database/sql"
	"errors"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every table AutoMigrate manages, in FK dependency
// order. Postgres and SQLite share the schema; the SQLite backend only
// differs in what it writes into the columns.
var DatabaseModels = []any{
	&ServiceInfo{},
	&Site{},
	&Session{},
	&Launch{},
	&SampleState{},
	&LandingEvent{},
	&ProbeReading{},
	&Performance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// ServiceInfo identifies this recorder deployment, seeded on first run
type ServiceInfo struct {
	gorm.Model
	ServiceName        string `json:"serviceName" gorm:"size:127"`
	ServiceDescription string `json:"serviceDescription" gorm:"size:255"`
	ServiceWebsite     string `json:"serviceURL" gorm:"size:255"`
}

func (*ServiceInfo) TableName() string {
	return "service_infos"
}

// Performance is the model for recorder pipeline health metrics
type Performance struct {
	Time                time.Time    `json:"time" gorm:"index:idx_performance_time"`
	SessionID           uint         `json:"sessionId" gorm:"index:idx_performance_session_id"`
	Session             Session      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Trajectories        uint16       `json:"trajectories"` // trajectories held this session
	Airborne            uint16       `json:"airborne"`
	Landed              uint16       `json:"landed"`
	Buffers             BufferDepths `json:"buffers" gorm:"embedded;embeddedPrefix:buffer_"`
	WriteQueues         QueueDepths  `json:"writeQueues" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteMs         float32      `json:"lastWriteMs"`
	LandingChannelDepth uint16       `json:"landingChannelDepth"`
}

func (*Performance) TableName() string {
	return "performances"
}

// BufferDepths is the embedded column group for dispatcher buffer depths.
type BufferDepths struct {
	Ticks   uint16 `json:"ticks"`
	Metrics uint16 `json:"metrics"`
}

// QueueDepths is the embedded column group for storage write queue depths.
type QueueDepths struct {
	Launches    uint16 `json:"launches"`
	Samples     uint16 `json:"samples"`
	Landings    uint16 `json:"landings"`
	FlightPaths uint16 `json:"flightPaths"`
	Probes      uint16 `json:"probes"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Site is a georeferenced launch site. Location is stored in EPSG:3857 with
// the Z coordinate carrying the site altitude ASL; the range axis points due
// east from it.
type Site struct {
	gorm.Model
	Name      string     `json:"name" gorm:"size:127"`
	Latitude  float64    `json:"latitude" gorm:"-"`
	Longitude float64    `json:"longitude" gorm:"-"`
	Location  geom.Point `json:"location"`
	Altitude  float64    `json:"altitude"` // m ASL, feeds the air density model
	Sessions  []Session
}

func (*Site) TableName() string {
	return "sites"
}

func (s *Site) GetOrInsert(db *gorm.DB) (created bool, err error) {
	var existing Site
	err = db.Where("name = ?", s.Name).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(s).Error
			return true, err
		}
		return false, err
	}
	// found, adopt the stored row and its ID
	*s = existing
	return false, nil
}

// Session is one recorded range session, a sequence of launches sharing an
// environment
//
// Command: :SESSION:START:
// Args: [sessionName, siteName, "lon,lat", altitude, tag]
type Session struct {
	gorm.Model
	UID            string    `json:"uid" gorm:"size:64;index:idx_session_uid"`
	SessionName    string    `json:"sessionName" gorm:"size:200"`
	Tag            string    `json:"tag" gorm:"size:127"`
	StartTime      time.Time `json:"sessionStart" gorm:"index:idx_session_start"`
	SiteID         uint
	Site           Site    `gorm:"foreignkey:SiteID"`
	Gravity        float64 `json:"gravity" gorm:"default:9.81"`
	Altitude       float64 `json:"altitude" gorm:"default:0"` // site altitude ASL for density lookups
	StepMs         int     `json:"stepMs" gorm:"default:25"`
	EngineVersion  string  `json:"engineVersion" gorm:"size:64;default:1.0.0"`
	ServiceVersion string  `json:"serviceVersion" gorm:"size:64;default:1.0.0"`

	Launches      []Launch
	SampleStates  []SampleState
	LandingEvents []LandingEvent
	ProbeReadings []ProbeReading
}

func (*Session) TableName() string {
	return "sessions"
}

// Launch is one projectile leaving the muzzle, and doubles as the
// completed-flight summary once it lands.
// Uses composite primary key (SessionID, TrajectoryID) - TrajectoryID is the engine-assigned sequential ID
//
// Command: :LAUNCH:
// Args: [height, angle, speed, mass, diameter, dragCoefficient, airResistance]
// or:   [preset, height, angle, speed, airResistance]
type Launch struct {
	SessionID    uint           `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	TrajectoryID uint16         `json:"trajectoryId" gorm:"primaryKey;autoIncrement:false"` // engine-assigned sequential ID
	Session      Session        `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	Time         time.Time      `json:"time" gorm:"NOT NULL;index:idx_launch_time"` // Server time of the launch

	Preset          string         `json:"preset" gorm:"size:64"`                 // Projectile preset name (empty for custom parameters)
	Mass            float64        `json:"mass"`                                  // kg
	Diameter        float64        `json:"diameter"`                              // m
	DragCoefficient float64        `json:"dragCoefficient"`                       // dimensionless
	AirResistance   bool           `json:"airResistance" gorm:"default:false"`    // Whether drag acts on this flight
	InitialHeight   float64        `json:"initialHeight"`                         // m above launch plane
	InitialAngle    float64        `json:"initialAngle"`                          // degrees from horizontal
	InitialSpeed    float64        `json:"initialSpeed"`                          // m/s
	Params          datatypes.JSON `json:"params" gorm:"type:jsonb;default:'{}'"` // Full parameter snapshot as JSON

	// Completed-flight summary, filled in when the projectile lands
	ChangedInMidAir bool            `json:"changedInMidAir" gorm:"default:false"` // Parameters were adjusted while airborne
	ReachedGround   bool            `json:"reachedGround" gorm:"default:false"`
	HasApex         bool            `json:"hasApex" gorm:"default:false"`
	ApexTime        sql.NullFloat64 `json:"apexTime" gorm:"default:NULL"` // Flight seconds at the apex sample
	ApexX           sql.NullFloat64 `json:"apexX" gorm:"default:NULL"`
	ApexY           sql.NullFloat64 `json:"apexY" gorm:"default:NULL"`
	ImpactX         sql.NullFloat64 `json:"impactX" gorm:"default:NULL"` // Downrange meters at ground contact
	FlightDuration  float64         `json:"flightDuration"`              // Seconds airborne

	Trail geom.Geometry `json:"-"` // LineStringZM of georeferenced samples [easting, northing, altitude, flightMs]
}

func (*Launch) TableName() string {
	return "launches"
}

// SampleState tracks one trajectory point of a flight
// References Launch by (SessionID, TrajectoryID) composite FK
//
// Produced by :TICK: integration steps
type SampleState struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Time         time.Time `json:"time"` // Server time when the sample was recorded
	SessionID    uint      `json:"sessionId" gorm:"index:idx_samplestate_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FlightTimeMs uint      `json:"flightTimeMs" gorm:"index:idx_flight_time_ms"` // ms since launch, on the step grid
	FlightTime   float64   `json:"flightTime"`                                   // Seconds since launch
	TrajectoryID uint16    `json:"trajectoryId" gorm:"index:idx_samplestate_trajectory_id"`
	Launch       Launch    `gorm:"foreignkey:SessionID,TrajectoryID;references:SessionID,TrajectoryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	Position   geom.Point `json:"position"`                    // Georeferenced position (EPSG:3857, Z = altitude ASL)
	DownrangeX float64    `json:"x"`                           // Meters downrange from the muzzle
	Height     float64    `json:"y"`                           // Meters above the launch plane
	VelocityX  float64    `json:"vx"`                          // m/s horizontal
	VelocityY  float64    `json:"vy"`                          // m/s vertical, positive up
	IsApex     bool       `json:"isApex" gorm:"default:false"` // Sample completed the climb-to-descent flip
}

func (*SampleState) TableName() string {
	return "sample_states"
}

// LandingEvent is the single ground contact of a flight
// References Launch by (SessionID, TrajectoryID) composite FK
type LandingEvent struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Time         time.Time `json:"time"` // Server time of the impact
	SessionID    uint      `json:"sessionId" gorm:"index:idx_landingevent_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	TrajectoryID uint16    `json:"trajectoryId" gorm:"index:idx_landingevent_trajectory_id"`
	Launch       Launch    `gorm:"foreignkey:SessionID,TrajectoryID;references:SessionID,TrajectoryID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	FlightTimeMs uint      `json:"flightTimeMs" gorm:"index:idx_landingevent_flight_time_ms;"` // ms since launch at impact

	FlightTime float64    `json:"flightTime"` // Seconds airborne
	ImpactX    float64    `json:"impactX"`    // Meters downrange at ground contact
	Position   geom.Point `json:"position"`   // Georeferenced impact point
	Distance   float32    `json:"distance"`   // Horizontal distance from the muzzle in meters
}

func (*LandingEvent) TableName() string {
	return "landing_events"
}

// ProbeReading records a tracer query and the sample it locked onto
//
// Command: :PROBE:
// Args: [x, y]
type ProbeReading struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Time      time.Time `json:"time"` // Server time of the query
	SessionID uint      `json:"sessionId" gorm:"index:idx_probereading_session_id"`
	Session   Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`

	QueryX  float64 `json:"queryX"`
	QueryY  float64 `json:"queryY"`
	Matched bool    `json:"matched" gorm:"default:false"`

	// Locked sample data, only meaningful when Matched
	TrajectoryID sql.NullInt32 `json:"trajectoryId" gorm:"default:NULL"` // Trajectory the probe locked onto (null if no match)
	SampleTime   float64       `json:"sampleTime"`                       // Flight seconds of the locked sample
	SampleX      float64       `json:"sampleX"`
	SampleY      float64       `json:"sampleY"`
	IsApex       bool          `json:"isApex" gorm:"default:false"`
}

func (*ProbeReading) TableName() string {
	return "probe_readings"
}
