package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rangelab/trajector/internal/api"
	"github.com/rangelab/trajector/internal/cache"
	"github.com/rangelab/trajector/internal/channel"
	"github.com/rangelab/trajector/internal/config"
	"github.com/rangelab/trajector/internal/dispatcher"
	"github.com/rangelab/trajector/internal/engine"
	"github.com/rangelab/trajector/internal/influx"
	"github.com/rangelab/trajector/internal/logging"
	"github.com/rangelab/trajector/internal/monitor"
	otelsetup "github.com/rangelab/trajector/internal/otel"
	"github.com/rangelab/trajector/internal/parser"
	"github.com/rangelab/trajector/internal/session"
	"github.com/rangelab/trajector/internal/storage"
	pgstorage "github.com/rangelab/trajector/internal/storage/postgres"
	"github.com/rangelab/trajector/internal/worker"
	"github.com/rangelab/trajector/pkg/core"

	influxwrite "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// service defs - BuildDate can be set at build time via ldflags
var (
	CurrentServiceVersion string = "0.0.1"
	BuildDate             string = "unknown"

	ServiceName string = "trajector"

	// EngineVersion is the integrator revision stamped into every session.
	EngineVersion string = "1.0.0"
)

// file paths
var (
	// WorkDir is where the config file, recordings, and local database
	// dumps live. Set from the -data flag.
	WorkDir string

	StartupLogFilePath string
	StartupLogFile     *os.File

	ServiceLogFilePath string
	ServiceLogFile     *os.File

	TraceLogFilePath string
	TraceLogFile     *os.File
)

// global services
var (
	// Logs owns the slog pipeline. Reconfigured once the real log file and
	// the OTel bridge exist.
	Logs *logging.Manager

	// Logger is the root slog handle, refreshed on every Logs.Setup.
	Logger *slog.Logger

	// OTelProvider exports traces and logs when telemetry is switched on.
	OTelProvider *otelsetup.Provider

	// ShouldSaveLocal indicates the recording stays on this machine
	// (memory or sqlite backend) rather than in Postgres
	ShouldSaveLocal bool = false

	SessionStartTime = time.Now()

	sessionContext *session.Context   = session.NewContext()
	launchCache    *cache.LaunchCache = cache.NewLaunchCache()

	simEngine      *engine.Engine
	parserService  *parser.Parser
	influxManager  *influx.Manager
	storageBackend storage.Backend
	workers        *worker.Manager
	statusMonitor  *monitor.Service
	events         *dispatcher.Dispatcher
	viewerClient   *api.Client

	// landings fans ground contacts out to consumers that sit outside the
	// command pipeline
	landings channel.Channel[core.LandingEvent]
)

// initService brings the whole recording stack up in dependency order:
// logging first, then telemetry, then storage, and the dispatcher last so
// no command can arrive before its handler's dependencies exist.
func initService(dataDir string) error {
	var err error

	WorkDir, err = filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data dir: %w", err)
	}
	os.MkdirAll(WorkDir, 0755)

	// Startup messages land in their own file until the dated log exists.
	StartupLogFilePath = filepath.Join(WorkDir, "startup.log")
	StartupLogFile, err = os.Create(StartupLogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create startup log: %v\n", err)
	}

	Logs = logging.NewManager()
	Logs.Setup(StartupLogFile, viper.GetString("logLevel"), nil)
	Logger = Logs.Logger()

	err = config.Load(WorkDir)
	if err != nil {
		Logger.Warn("No config file found, running on defaults", "error", err)
	} else {
		Logger.Info("Config loaded", "dir", WorkDir)
	}

	os.MkdirAll(viper.GetString("logsDir"), 0755)

	ServiceLogFilePath = logging.LogFilePath(viper.GetString("logsDir"), ServiceName, SessionStartTime)

	// a leftover file from a crashed run gets moved aside, not appended to
	if _, err := os.Stat(ServiceLogFilePath); err == nil {
		os.Rename(ServiceLogFilePath, ServiceLogFilePath+".old")
	}

	ServiceLogFile, err = os.OpenFile(ServiceLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", ServiceLogFilePath)
	}

	// Telemetry wants the log file handle, so it comes up after the file.
	if otelCfg := config.GetOTelConfig(); otelCfg.Enabled {
		otelCfg.LogWriter = ServiceLogFile
		OTelProvider, err = otelsetup.New(otelCfg)
		if err != nil {
			Logger.Error("OTel provider failed to start", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider up", "file", ServiceLogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider up", "file", ServiceLogFilePath)
		}
	}

	// Swap logging over to the dated file, bridged into OTel when available.
	var otelLogs *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogs = OTelProvider.Logs()
	}
	Logs.Setup(ServiceLogFile, viper.GetString("logLevel"), otelLogs)
	Logger = Logs.Logger()
	Logger.Info("Logging to file", "path", ServiceLogFilePath)
	Logger.Info("Service starting", "version", CurrentServiceVersion, "buildDate", BuildDate)

	// Live session state the logger stamps onto every record.
	Logs.GetSessionName = func() string {
		return sessionContext.GetSession().Name
	}
	Logs.GetSessionID = func() uint {
		return sessionContext.GetSession().ID
	}
	Logs.IsUsingLocalDB = func() bool { return ShouldSaveLocal }
	Logs.IsStatusRunning = func() bool {
		if statusMonitor != nil {
			return statusMonitor.Running()
		}
		return false
	}

	// The zerolog pipeline still carries Graylog shipping and the metric
	// writer diagnostics.
	gelfAddr := ""
	if viper.GetBool("graylog.enabled") {
		gelfAddr = viper.GetString("graylog.address")
	}
	legacyLog, err := logging.NewConsole(logging.ConsoleConfig{
		Level:       viper.GetString("logLevel"),
		GelfAddress: gelfAddr,
	})
	if err != nil {
		Logger.Warn("Failed to initialize console logger", "error", err)
	}

	influxLog := legacyLog
	if viper.GetBool("traceLog") {
		TraceLogFilePath = logging.TraceLogFilePath(viper.GetString("logsDir"), ServiceName, SessionStartTime)
		TraceLogFile, err = os.OpenFile(TraceLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			Logger.Error("Failed to create/open trace log file!", "error", err, "path", TraceLogFilePath)
		} else {
			traceConsole, err := logging.NewConsole(logging.ConsoleConfig{
				Level: "trace",
				File:  TraceLogFile,
			})
			if err != nil {
				Logger.Warn("Failed to initialize trace logger", "error", err)
			} else {
				influxLog = logging.NewTraceSampler(traceConsole)
				Logger.Info("Trace logging enabled", "path", TraceLogFilePath)
			}
		}
	}

	// leave two cores to the OS and the database drivers
	procs := max(runtime.NumCPU()-2, 1)
	runtime.GOMAXPROCS(procs)
	Logger.Debug("Parallelism capped", "procs", procs, "cpus", runtime.NumCPU())

	// viewer API client, shared by the healthcheck and the upload at exit
	if serverURL := viper.GetString("api.serverUrl"); serverURL != "" {
		viewerClient = api.New(serverURL, viper.GetString("api.apiKey"))
	}

	if viper.GetBool("influx.enabled") {
		influxManager = influx.NewManager(influxLog, filepath.Join(WorkDir, "influx_backup.gz"))
		if err := influxManager.Open(); err != nil {
			Logger.Warn("InfluxDB unavailable, metrics drop to the backup writer", "error", err)
		}
	}

	simEngine = engine.New(config.GetSimulationSettings(), config.GetLaunchDefaults())
	Logger.Info("Engine initialized",
		"gravity", config.GetSimulationSettings().Gravity,
		"stepMs", config.GetSimulationSettings().StepMs)

	events, err = dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	registerServiceCommands(events)

	landings = channel.New[core.LandingEvent](256)

	parserService = parser.New(Logger, EngineVersion, CurrentServiceVersion)

	// storage backend plus the worker handlers that feed it
	if err := initStorage(legacyLog); err != nil {
		return err
	}

	monitorDeps := monitor.Dependencies{
		Engine:         simEngine,
		SessionContext: sessionContext,
		WorkerManager:  workers,
		Dispatcher:     events,
		Backend:        storageBackend,
		Influx:         influxManager,
		LogManager:     Logs,
		Landings:       landings,
		StatusDir:      WorkDir,
	}
	if pgBackend, ok := storageBackend.(*pgstorage.Backend); ok {
		monitorDeps.DB = pgBackend.DB()
	}
	statusMonitor = monitor.New(monitorDeps)

	if monitorDeps.DB != nil {
		hyperTables := map[string][]string{
			"sample_states":  {"time", "trajectory_id", "session_id"},
			"landing_events": {"time", "trajectory_id", "session_id"},
			"probe_readings": {"time", "session_id"},
			"performances":   {"time", "session_id"},
		}
		if err := statusMonitor.EnsureHypertables(hyperTables); err != nil {
			Logger.Warn("Hypertable validation failed", "error", err)
		}
	}

	if !statusMonitor.Running() {
		Logger.Debug("Starting status monitor")
		statusMonitor.Start()
	}

	go consumeLandings()
	go checkServerStatus()

	return nil
}

// registerServiceCommands registers the commands answered by the service
// itself. Everything that drives the engine lives in the worker.
func registerServiceCommands(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(dispatcher.Event) (any, error) {
		return []string{CurrentServiceVersion, BuildDate}, nil
	})

	d.Register(":STATUS:", func(dispatcher.Event) (any, error) {
		if statusMonitor == nil {
			return nil, fmt.Errorf("status service not started")
		}
		lines, _ := statusMonitor.GetProgramStatus(true, true, true)
		return lines, nil
	}, dispatcher.Logged())
}

func checkServerStatus() {
	if viewerClient == nil {
		return
	}
	if err := viewerClient.Healthcheck(); err != nil {
		Logger.Info("Range viewer is offline")
	} else {
		Logger.Info("Range viewer is online")
	}
}

// consumeLandings drains the landing feed, logging each ground contact and
// forwarding it to the landing metric bucket. Runs until the channel closes
// at shutdown.
func consumeLandings() {
	for evt := range landings.Receive() {
		Logger.Info("Projectile landed",
			"trajectoryId", evt.TrajectoryID,
			"flightTime", evt.FlightTime,
			"distance", evt.X)

		if influxManager == nil {
			continue
		}
		point := influxwrite.NewPointWithMeasurement("landing").
			AddTag("sessionUid", sessionContext.GetSession().UID).
			AddField("trajectoryId", int64(evt.TrajectoryID)).
			AddField("flightTime", evt.FlightTime).
			AddField("distance", evt.X).
			SetTime(evt.Time)
		if err := influxManager.WritePoint(context.Background(), influx.BucketLandingData, point); err != nil {
			Logger.Error("Failed to write landing metric", "error", err)
		}
	}
}

// parseCommandLine splits one wire line into command and args. Lines are
// pipe-delimited with the command token first:
//
//	:LAUNCH:|0|45|120|6.2|0.12|0.3|1
//
// Blank lines and #-comments yield ok=false.
func parseCommandLine(line string) (command string, args []string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, false
	}
	parts := strings.Split(line, "|")
	return parts[0], parts[1:], true
}

func printResult(command string, res any) {
	switch v := res.(type) {
	case []string:
		fmt.Println(command)
		for _, line := range v {
			fmt.Println("  " + line)
		}
	default:
		fmt.Printf("%s %v\n", command, v)
	}
}

// runCommands feeds wire commands from r into the dispatcher until EOF, an
// explicit session end, or a signal. Results of query commands go to stdout;
// the log file carries everything else. Reports whether the stream closed
// the session itself.
func runCommands(r io.Reader, sig <-chan os.Signal) bool {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			Logger.Error("Command stream read error", "error", err)
		}
		close(lines)
	}()

	for {
		select {
		case s := <-sig:
			Logger.Info("Signal received, shutting down", "signal", s.String())
			return false

		case line, open := <-lines:
			if !open {
				return false
			}
			command, args, ok := parseCommandLine(line)
			if !ok {
				continue
			}

			// queued world steps must land in the recording before the
			// session closes behind them
			if command == ":SESSION:END:" {
				drainDispatcher(10 * time.Second)
			}

			res, err := events.Dispatch(dispatcher.Event{
				Command:   command,
				Args:      args,
				Timestamp: time.Now(),
			})
			if err != nil {
				Logger.Error("Command failed", "command", command, "error", err)
				fmt.Fprintf(os.Stderr, "%s error: %v\n", command, err)
				continue
			}
			if res != nil {
				printResult(command, res)
			}
			if command == ":SESSION:END:" {
				return true
			}
		}
	}
}

// drainDispatcher waits for the buffered command queues to empty so queued
// world steps and metrics are applied before anything irreversible happens.
func drainDispatcher(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if events.BufferLen(":TICK:") == 0 && events.BufferLen(":METRIC:") == 0 {
			// queues are empty but the last event may still be in a handler
			time.Sleep(50 * time.Millisecond)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	Logger.Warn("Timed out draining command buffers",
		"ticks", events.BufferLen(":TICK:"),
		"metrics", events.BufferLen(":METRIC:"))
}

// uploadRecording pushes the exported session file to the range viewer when
// the backend produced one and a viewer is configured.
func uploadRecording() {
	uploadable, ok := storageBackend.(storage.Uploadable)
	if !ok || viewerClient == nil {
		return
	}
	path := uploadable.GetExportedFilePath()
	if path == "" {
		return
	}
	if err := viewerClient.Healthcheck(); err != nil {
		Logger.Warn("Range viewer offline, recording kept local", "path", path, "error", err)
		return
	}
	meta := uploadable.GetExportMetadata()
	if err := viewerClient.Upload(path, meta); err != nil {
		Logger.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	Logger.Info("Recording uploaded to viewer", "path", path, "session", meta.SessionName)
}

// shutdown tears the stack down in reverse dependency order. A session the
// command stream left open is closed first so the recording is complete.
func shutdown(sessionEnded bool) {
	Logger.Info("Shutting down")

	drainDispatcher(10 * time.Second)

	if !sessionEnded && sessionContext.Active() {
		if _, err := events.Dispatch(dispatcher.Event{
			Command:   ":SESSION:END:",
			Timestamp: time.Now(),
		}); err != nil {
			Logger.Error("Failed to end session during shutdown", "error", err)
		}
	}

	statusMonitor.Stop()
	landings.Close()

	uploadRecording()

	if err := storageBackend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}

	if influxManager != nil {
		influxManager.Close()
	}

	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.ForceFlush(ctx); err != nil {
			Logger.Error("Failed to flush OTel provider", "error", err)
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}

	Logger.Info("Shutdown complete")
}

func dispatchDemoEvent(command string, args []string) (any, error) {
	res, err := events.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	if err != nil {
		Logger.Error("Demo event failed", "command", command, "error", err)
	}
	return res, err
}

// populateDemoData drives a short scripted session through the dispatcher,
// the same path real range commands take.
func populateDemoData() bool {
	site := config.GetSiteConfig()
	dispatchDemoEvent(":SESSION:START:", []string{
		"Demo Session",
		site.Name,
		site.Coords,
		strconv.FormatFloat(site.Altitude, 'f', -1, 64),
		"demo",
	})

	// one preset launch plus a handful of randomized full-spec launches
	dispatchDemoEvent(":LAUNCH:", []string{"golfball", "0", "35", "70", "1"})
	for i := 0; i < 4; i++ {
		angle := 20 + rand.Float64()*50
		speed := 10 + rand.Float64()*30
		dispatchDemoEvent(":LAUNCH:", []string{
			"0",
			fmt.Sprintf("%.1f", angle),
			fmt.Sprintf("%.1f", speed),
			"17.6", "0.18", "0.47", "1",
		})
	}

	// step the world, retune the mid-flight parameters, then step until
	// everything has landed
	for i := 0; i < 40; i++ {
		dispatchDemoEvent(":TICK:", []string{"0.05"})
	}
	drainDispatcher(10 * time.Second)
	dispatchDemoEvent(":ADJUST:", []string{"8.0", "0.12", "0.35", "1"})

	for i := 0; i < 400; i++ {
		dispatchDemoEvent(":TICK:", []string{"0.05"})
	}
	drainDispatcher(10 * time.Second)

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if simEngine.Stats().Airborne == 0 {
			break
		}
		dispatchDemoEvent(":TICK:", []string{"0.5"})
		drainDispatcher(5 * time.Second)
	}

	if res, err := dispatchDemoEvent(":PROBE:", []string{"25", "2"}); err == nil {
		printResult(":PROBE:", res)
	}
	if res, err := dispatchDemoEvent(":NEAREST:", []string{"1", "25", "2"}); err == nil {
		printResult(":NEAREST:", res)
	}
	dispatchDemoEvent(":METRIC:", []string{
		influx.BucketServerPerformance,
		"range_server",
		"tag::host::demo",
		"field::float::cpuLoad::0.12",
		"field::int::commandCount::450",
	})
	if res, err := dispatchDemoEvent(":STATUS:", nil); err == nil {
		printResult(":STATUS:", res)
	}

	drainDispatcher(10 * time.Second)
	dispatchDemoEvent(":SESSION:END:", nil)
	return true
}

func main() {
	dataDir := flag.String("data", ".", "working directory for config, logs, and recordings")
	planPath := flag.String("plan", "", "command plan file to run; reads stdin when empty")
	demo := flag.Bool("demo", false, "run a built-in demo session and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", ServiceName, CurrentServiceVersion, BuildDate)
		return
	}

	if err := initService(*dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var sessionEnded bool
	switch {
	case *demo:
		sessionEnded = populateDemoData()

	case *planPath != "":
		f, err := os.Open(*planPath)
		if err != nil {
			Logger.Error("Cannot open plan file", "path", *planPath, "error", err)
			shutdown(false)
			os.Exit(1)
		}
		Logger.Info("Running command plan", "path", *planPath)
		sessionEnded = runCommands(f, sig)
		f.Close()

	default:
		Logger.Info("Reading commands from stdin")
		sessionEnded = runCommands(os.Stdin, sig)
	}

	shutdown(sessionEnded)
}
