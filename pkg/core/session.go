// Package core holds the plain data records that flow between the engine,
// the storage backends, and the streaming protocol. Nothing here knows
// about databases or wire formats.
package core

import "time"

// Site is the georeferenced launch site a session runs at.
type Site struct {
	ID        uint
	Name      string
	Longitude float64
	Latitude  float64
	Altitude  float64 // m above sea level, feeds the density model
}

// Session is one recorded range session: a sequence of launches sharing an
// environment.
type Session struct {
	ID             uint
	UID            string // uuid assigned at session start
	Name           string
	Tag            string
	StartTime      time.Time
	Gravity        float64
	Altitude       float64
	StepMs         int
	EngineVersion  string
	ServiceVersion string
}
