package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"
	influxwrite "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Bucket names for the metric streams the recorder produces.
const (
	BucketFlightData        = "flight_data"
	BucketLandingData       = "landing_data"
	BucketProbeData         = "probe_data"
	BucketEnginePerformance = "trajector_performance"
	BucketServerPerformance = "server_performance"
)

const bucketRetention = 90 * 24 * time.Hour

// Manager owns the InfluxDB client and one async writer per bucket. When the
// server cannot be reached it degrades to appending gzip line protocol at
// fallbackPath, which an operator can replay later with `influx write`.
type Manager struct {
	client  influxdb2.Client
	writers map[string]influxapi.WriteAPI
	buckets []string
	healthy bool

	fallback     *gzip.Writer
	fallbackFile *os.File
	fallbackPath string

	log zerolog.Logger
}

// NewManager creates a manager covering the recorder's default buckets.
func NewManager(log zerolog.Logger, fallbackPath string) *Manager {
	return &Manager{
		writers: make(map[string]influxapi.WriteAPI),
		buckets: []string{
			BucketFlightData,
			BucketLandingData,
			BucketProbeData,
			BucketEnginePerformance,
			BucketServerPerformance,
		},
		fallbackPath: fallbackPath,
		log:          log,
	}
}

// Open pings InfluxDB and prepares either the bucket writers or the
// fallback file. A down server is not an error; WritePoint degrades instead.
func (m *Manager) Open() error {
	if enabled := viper.GetBool("influx.enabled"); !enabled {
		return errors.New("influx.enabled is false")
	}

	token := viper.GetString("influx.token")
	m.client = influxdb2.NewClientWithOptions(
		serverURL(),
		token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(context.Background())
	if err != nil || !running {
		m.healthy = false
		if err := m.openFallback(); err != nil {
			return err
		}
		m.log.Warn().Str("path", m.fallbackPath).
			Msg("InfluxDB unreachable, writing line protocol to fallback file")
		return nil
	}
	m.healthy = true

	if err := m.ensureBuckets(context.Background()); err != nil {
		return err
	}
	m.startWriters()
	m.log.Info().Msg("InfluxDB client initialized")
	return nil
}

func serverURL() string {
	return fmt.Sprintf(
		"%s://%s:%s",
		viper.GetString("influx.protocol"),
		viper.GetString("influx.host"),
		viper.GetString("influx.port"),
	)
}

// openFallback opens the gzip append file once; later calls reuse it.
func (m *Manager) openFallback() error {
	if m.fallback != nil {
		return nil
	}

	file, err := os.OpenFile(m.fallbackPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open influx fallback file: %w", err)
	}
	m.fallbackFile = file
	m.fallback = gzip.NewWriter(file)
	return nil
}

// ensureBuckets creates the organization and any missing buckets, each with
// a 90 day retention rule.
func (m *Manager) ensureBuckets(ctx context.Context) error {
	org := viper.GetString("influx.org")

	orgs := m.client.OrganizationsAPI()
	found, err := orgs.FindOrganizationByName(ctx, org)
	if err != nil {
		m.log.Info().Str("org", org).Msg("Organization not found, creating")
		if found, err = orgs.CreateOrganizationWithName(ctx, org); err != nil {
			return fmt.Errorf("create influx organization %q: %w", org, err)
		}
	}

	bucketsAPI := m.client.BucketsAPI()
	expire := domain.RetentionRuleTypeExpire
	for _, name := range m.buckets {
		if _, err := bucketsAPI.FindBucketByName(ctx, name); err == nil {
			continue
		}
		m.log.Info().Str("bucket", name).Msg("Bucket not found, creating")
		_, err := bucketsAPI.CreateBucketWithName(ctx, found, name, domain.RetentionRule{
			Type:         &expire,
			EverySeconds: int64(bucketRetention / time.Second),
		})
		if err != nil {
			return fmt.Errorf("create influx bucket %q: %w", name, err)
		}
	}
	return nil
}

// startWriters opens one async write API per bucket and drains its error
// channel into the log.
func (m *Manager) startWriters() {
	org := viper.GetString("influx.org")
	for _, name := range m.buckets {
		writer := m.client.WriteAPI(org, name)
		m.writers[name] = writer
		go m.drainWriteErrors(name, writer.Errors())
	}
	m.log.Debug().Msg("InfluxDB writers initialized")
}

func (m *Manager) drainWriteErrors(bucket string, errs <-chan error) {
	for err := range errs {
		m.log.Error().Err(err).Str("bucket", bucket).Msg("Error sending data to InfluxDB")
	}
}

// WritePoint hands the point to the bucket's async writer, or appends it to
// the fallback file when the server is down.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxwrite.Point) error {
	if !m.healthy {
		return m.writeFallback(point)
	}

	writer, ok := m.writers[bucket]
	if !ok {
		return fmt.Errorf("influx bucket %q not registered", bucket)
	}
	writer.WritePoint(point)
	return nil
}

func (m *Manager) writeFallback(point *influxwrite.Point) error {
	if m.fallback == nil {
		return errors.New("influx client not initialized and fallback file not available")
	}

	line := influxwrite.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.fallback.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write influx fallback file: %w", err)
	}
	return nil
}

// Close flushes pending writes and shuts down the client. Safe to call when
// the connection never came up.
func (m *Manager) Close() {
	for bucket, writer := range m.writers {
		m.log.Trace().Str("bucket", bucket).Msg("Flushing InfluxDB writer")
		writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.fallback != nil {
		if err := m.fallback.Close(); err != nil {
			m.log.Error().Err(err).Msg("Error closing InfluxDB fallback writer")
		}
	}
	if m.fallbackFile != nil {
		if err := m.fallbackFile.Close(); err != nil {
			m.log.Error().Err(err).Msg("Error closing InfluxDB fallback file")
		}
	}
}

// ProcessMetricData parses one metric event from the range feed into a bucket
// name and point. Entries are positional: bucket, measurement, then any
// number of "tag::name::value" and "field::type::name::value" entries.
func ProcessMetricData(data []string, unquote func(string) string) (
	bucket string,
	point *influxwrite.Point,
	err error,
) {
	for i, v := range data {
		data[i] = unquote(v)
	}

	if len(data) < 2 {
		return "", nil, fmt.Errorf("metric data needs at least a bucket and measurement, got %d entries", len(data))
	}

	bucket = data[0]
	point = influxwrite.NewPointWithMeasurement(data[1])

	for _, entry := range data[2:] {
		switch {
		case strings.HasPrefix(entry, "tag::"):
			if parts := strings.SplitN(entry, "::", 3); len(parts) == 3 {
				point.AddTag(parts[1], parts[2])
			}
		case strings.HasPrefix(entry, "field::"):
			if err := addField(point, entry); err != nil {
				return "", nil, err
			}
		}
	}

	return bucket, point, nil
}

// addField parses a "field::type::name::value" entry. Entries with missing
// parts are skipped; a value that fails its declared type is an error.
func addField(point *influxwrite.Point, entry string) error {
	parts := strings.SplitN(entry, "::", 4)
	if len(parts) < 4 {
		return nil
	}
	fieldType, name, value := parts[1], parts[2], parts[3]

	switch fieldType {
	case "string":
		point.AddField(name, value)
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %q: converting %q to int: %w", name, value, err)
		}
		point.AddField(name, n)
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("field %q: converting %q to float: %w", name, value, err)
		}
		point.AddField(name, f)
	}
	return nil
}
