package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rangelab/trajector/internal/util"
	"github.com/rangelab/trajector/pkg/core"
)

// ParseSessionStart parses session and site data from raw args.
// Layout: [name, siteName, "lon,lat", altitude, tag].
// Returns parsed session + site. NO DB operations, NO cache resets, NO callbacks.
// Gravity, StepMs, and the session ID are filled by the worker layer from the
// engine settings before the session reaches storage.
func (p *Parser) ParseSessionStart(data []string) (core.Session, core.Site, error) {
	var session core.Session
	var site core.Site

	// fix received data
	for i, v := range data {
		data[i] = util.Unquote(v)
	}

	if len(data) < 5 {
		return session, site, fmt.Errorf("session start needs 5 arguments, got %d", len(data))
	}

	session.Name = data[0]
	site.Name = data[1]

	// "lon,lat" site coordinates in EPSG:4326
	coords := strings.Split(data[2], ",")
	if len(coords) < 2 {
		return session, site, fmt.Errorf("site coordinates must be \"lon,lat\", got %q", data[2])
	}
	lon, err := parseFinite("site longitude", coords[0])
	if err != nil {
		return session, site, err
	}
	lat, err := parseFinite("site latitude", coords[1])
	if err != nil {
		return session, site, err
	}
	site.Longitude = lon
	site.Latitude = lat

	altitude, err := parseFinite("site altitude", data[3])
	if err != nil {
		return session, site, err
	}
	if altitude < 0 {
		return session, site, fmt.Errorf("site altitude must be >= 0, got %v", altitude)
	}
	site.Altitude = altitude

	session.Tag = data[4]
	session.UID = uuid.New().String()
	session.StartTime = time.Now()
	session.Altitude = altitude

	// received at service init and saved to local memory
	session.EngineVersion = p.engineVersion
	session.ServiceVersion = p.serviceVersion

	p.logger.Debug("Parsed session start data",
		"sessionName", session.Name,
		"siteName", site.Name)

	return session, site, nil
}
