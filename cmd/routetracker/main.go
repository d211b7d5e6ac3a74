// Command routetracker records player trajectories from a running Elden
// Ring client. It attaches to the game process, samples the player
// position on a fixed interval and serves an interactive console for
// recording, saving and browsing routes.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rbignon/ER-Route-tracker/internal/api"
	"github.com/rbignon/ER-Route-tracker/internal/command"
	"github.com/rbignon/ER-Route-tracker/internal/config"
	"github.com/rbignon/ER-Route-tracker/internal/database"
	"github.com/rbignon/ER-Route-tracker/internal/dispatcher"
	"github.com/rbignon/ER-Route-tracker/internal/influx"
	"github.com/rbignon/ER-Route-tracker/internal/library"
	"github.com/rbignon/ER-Route-tracker/internal/logging"
	"github.com/rbignon/ER-Route-tracker/internal/monitor"
	intOtel "github.com/rbignon/ER-Route-tracker/internal/otel"
	"github.com/rbignon/ER-Route-tracker/internal/pointers"
	"github.com/rbignon/ER-Route-tracker/internal/route"
	"github.com/rbignon/ER-Route-tracker/internal/session"
	"github.com/rbignon/ER-Route-tracker/internal/snapshot"
	"github.com/rbignon/ER-Route-tracker/internal/stream"
	"github.com/rbignon/ER-Route-tracker/internal/tracker"
	"github.com/rbignon/ER-Route-tracker/internal/transform"
	"github.com/rbignon/ER-Route-tracker/internal/worker"
	"github.com/rbignon/ER-Route-tracker/pkg/gameproc"
	"github.com/rbignon/ER-Route-tracker/pkg/streaming"
)

// build metadata, BuildDate can be set at build time via ldflags
var (
	Version   string = "0.5.0"
	BuildDate string = "unknown"
)

// AppName names the log file, the status file and the OTel service.
const AppName = "route_tracker"

// file paths
var (
	// BaseDir is the folder holding the executable; the config file, the
	// anchor table and every relative config path resolve against it.
	BaseDir string

	LogFilePath string
	LogFile     *os.File

	// logOut is LogFile as a plain writer. It stays nil when the file
	// could not be opened so the writer guards downstream keep working.
	logOut io.Writer
)

// global state and services
var (
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	// gelfOut stays nil unless graylog is enabled; the slog pipeline and
	// the component loggers share it.
	gelfOut io.Writer

	SessionStartTime time.Time = time.Now()

	// Services
	dbManager       *database.Manager
	routeLibrary    *library.Store
	influxManager   *influx.Manager
	streamClient    *stream.Client
	apiClient       *api.Client
	sessionCtx      *session.Context
	snapCache       *snapshot.Cache
	routeSaver      *route.Saver
	tickTimer       *monitor.TickTimer
	eventDispatcher *dispatcher.Dispatcher
	workerManager   *worker.Manager
	monitorService  *monitor.Service

	// engine stays nil in one-shot mode; commands that need it check.
	engine *tracker.Engine
)

// init sets up console logging so startup problems are visible before the
// log file exists.
func init() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup("info")
	Logger = SlogManager.Logger()

	exe, err := os.Executable()
	if err != nil {
		BaseDir = "."
		return
	}
	BaseDir = filepath.Dir(exe)
}

func main() {
	Logger.Info("Starting up...", "version", Version, "build", BuildDate)

	if err := loadConfig(); err != nil {
		Logger.Error("Cannot read the config file", "error", err)
		fmt.Fprintf(os.Stderr, "route tracker needs %s in %s\n", config.ConfigFileName, BaseDir)
		os.Exit(1)
	}
	Logger.Info("Loaded config", "dir", BaseDir)

	sessionCtx = session.NewContext()
	snapCache = snapshot.New()
	routeSaver = route.NewSaver(resolvePath(config.GetTrackerConfig().RoutesDir))

	setupLogging()
	setupStorage()
	if err := startGoroutines(); err != nil {
		Logger.Error("Failed to start services", "error", err)
		shutdown()
		os.Exit(1)
	}

	// one-shot mode: run a single library command and exit, no game needed
	if args := os.Args[1:]; len(args) > 0 {
		runDirect(strings.Join(args, " "))
		shutdown()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := waitForGame(ctx)
	if err != nil {
		Logger.Info("Interrupted before the game appeared")
		shutdown()
		return
	}
	defer proc.Close()

	ver, verStr, err := resolveVersion(proc)
	if err != nil {
		Logger.Error("Cannot resolve the game version", "error", err)
		fmt.Fprintln(os.Stderr, err)
		shutdown()
		os.Exit(1)
	}
	Logger.Info("Game version resolved",
		"version", verStr,
		"player_block", fmt.Sprintf("%#x", pointers.PlayerBlockOffset(ver)))

	gameCfg := config.GetGameConfig()
	base, err := proc.ModuleBase(gameCfg.ProcessName)
	if err != nil {
		Logger.Error("Cannot locate the game module", "error", err)
		fmt.Fprintln(os.Stderr, err)
		shutdown()
		os.Exit(1)
	}
	chains := pointers.NewSet(proc, base, ver)

	trackerCfg := config.GetTrackerConfig()
	anchorPath := resolvePath(trackerCfg.AnchorTable)
	trans, err := transform.Load(anchorPath)
	if err != nil {
		Logger.Warn("Anchor table unavailable, keeping tile-local coordinates",
			"error", err, "path", anchorPath)
		trans = transform.NewEmpty()
	} else {
		Logger.Info("Anchor table loaded",
			"maps", trans.MapCount(), "rows", trans.RowCount(), "skipped", trans.SkippedRows())
	}

	sess := sessionCtx.Begin(gameCfg.ProcessName, proc.Pid(), verStr)
	Logger.Info("Session started", "session", sess.ID, "pid", sess.PID)

	engine = tracker.New(chains, trans, snapCache, Logger,
		tracker.Config{IntervalMs: trackerCfg.IntervalMs})

	fmt.Printf("attached to %s (pid %d, version %s)\n", gameCfg.ProcessName, proc.Pid(), verStr)
	fmt.Println("waiting for a loaded world...")
	if err := engine.WaitReady(ctx); err != nil {
		Logger.Info("Interrupted during the readiness wait")
		shutdown()
		return
	}
	fmt.Println("world loaded, type 'help' for commands")

	runLoop(ctx, proc)
	shutdown()
}

func loadConfig() error {
	return config.Load(BaseDir)
}

// resolvePath anchors a relative config path at the executable's folder.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(BaseDir, p)
}

// setupLogging moves slog from the console to the session log file and
// attaches the optional graylog and OTel sinks.
func setupLogging() {
	logsDir := resolvePath(config.GetString("logsDir"))
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to open the log file, staying on the console",
			"error", err, "path", LogFilePath)
		LogFile = nil
	} else {
		logOut = LogFile
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logOut,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize the OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	gelfCfg := config.GetGelfConfig()
	if gelfCfg.Enabled {
		w, err := logging.NewGelfWriter(gelfCfg.Address)
		if err != nil {
			Logger.Error("Failed to reach graylog", "error", err, "address", gelfCfg.Address)
		} else {
			gelfOut = w
		}
	}

	opts := []logging.Option{logging.WithContext(sessionAttrs)}
	if logOut != nil {
		opts = append(opts, logging.WithFile(logOut))
	}
	if gelfOut != nil {
		opts = append(opts, logging.WithGelf(gelfOut))
	}
	if OTelProvider != nil {
		opts = append(opts, logging.WithOTel(OTelProvider.LoggerProvider()))
	}
	SlogManager.Setup(config.GetString("logLevel"), opts...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

// sessionAttrs stamps log records with the active recording session.
func sessionAttrs() []slog.Attr {
	if sessionCtx == nil || !sessionCtx.Attached() {
		return nil
	}
	s := sessionCtx.Get()
	return []slog.Attr{
		slog.String("session", s.ID),
		slog.String("game_version", s.GameVersion),
	}
}

// setupStorage connects the route library database and the metrics sink.
// Either one failing leaves recording and saving fully functional.
func setupStorage() {
	level := config.GetString("logLevel")

	dbManager = database.NewManager(
		logging.NewComponentLogger("database", logOut, gelfOut, level),
		resolvePath(config.GetDBConfig().SQLitePath),
	)
	if err := dbManager.Connect(); err != nil {
		Logger.Warn("Route library database unavailable", "error", err)
	} else if err := dbManager.Setup(); err != nil {
		Logger.Warn("Route library migration failed", "error", err)
		dbManager.IsValid = false
	}
	if dbManager.IsValid {
		routeLibrary = library.NewStore(dbManager.DB,
			logging.NewComponentLogger("library", logOut, gelfOut, level))
	}

	if config.GetInfluxConfig().Enabled {
		backupPath := filepath.Join(resolvePath(config.GetString("logsDir")), "influx_backup.gz")
		influxManager = influx.NewManager(
			logging.NewComponentLogger("influx", logOut, gelfOut, level), backupPath)
		if err := influxManager.Connect(); err != nil {
			Logger.Warn("Telemetry metrics unavailable", "error", err)
			influxManager = nil
		}
	}
}

// startGoroutines wires the event dispatcher, the sink worker and the
// health monitor, then starts the background loops.
func startGoroutines() error {
	level := config.GetString("logLevel")

	streamCfg := config.GetStreamConfig()
	if streamCfg.Enabled {
		streamClient = stream.New(stream.Config{URL: streamCfg.URL, Secret: streamCfg.Token},
			logging.NewComponentLogger("stream", logOut, gelfOut, level))
		if err := streamClient.Connect(); err != nil {
			Logger.Warn("Live viewer unavailable", "error", err, "url", streamCfg.URL)
			streamClient = nil
		}
	}

	apiCfg := config.GetAPIConfig()
	if apiCfg.Enabled {
		apiClient = api.New(apiCfg.ServerURL, apiCfg.APIKey)
		if err := apiClient.Healthcheck(); err != nil {
			Logger.Warn("Route sharing server unreachable, uploads may fail", "error", err)
		}
	}

	var err error
	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(
		logging.NewComponentLogger("dispatcher", logOut, gelfOut, level)))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	workerManager = worker.NewManager(worker.Dependencies{
		Session: sessionCtx,
		Library: routeLibrary,
		Influx:  influxManager,
		Stream:  streamClient,
		Log:     Logger,
	}, time.Second)
	workerManager.RegisterHandlers(eventDispatcher)
	workerManager.Start()

	tickTimer = &monitor.TickTimer{}
	monCfg := config.GetMonitorConfig()
	if monCfg.Enabled {
		monitorService, err = monitor.NewService(monitor.Dependencies{
			Session:    sessionCtx,
			Snap:       snapCache,
			Worker:     workerManager,
			Ticks:      tickTimer,
			Log:        Logger,
			StatusPath: filepath.Join(resolvePath(config.GetString("logsDir")), "status.txt"),
		}, monCfg.Interval)
		if err != nil {
			Logger.Error("Failed to create the monitor", "error", err)
		} else if !monitorService.IsRunning() {
			monitorService.Start()
		}
	}

	// an in-memory library is only as durable as its last dump
	if dbManager.IsValid && dbManager.MemoryOnly {
		go func() {
			for {
				time.Sleep(3 * time.Minute)
				if err := dbManager.DumpMemoryToDisk(); err != nil {
					Logger.Error("Failed to dump the in-memory library", "error", err)
				}
			}
		}()
	}
	return nil
}

// waitForGame polls until the game process can be opened. Only ctx
// cancellation gives up.
func waitForGame(ctx context.Context) (*gameproc.Process, error) {
	gameCfg := config.GetGameConfig()
	poll := time.Duration(gameCfg.AttachPollMs) * time.Millisecond
	if poll <= 0 {
		poll = time.Second
	}

	Logger.Info("Waiting for the game process", "process", gameCfg.ProcessName)
	fmt.Printf("waiting for %s...\n", gameCfg.ProcessName)
	for {
		proc, err := gameproc.Attach(gameCfg.ProcessName)
		if err == nil {
			Logger.Info("Attached to the game process", "pid", proc.Pid())
			return proc, nil
		}
		Logger.Debug("Game process not found yet", "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// resolveVersion determines the client build, preferring an explicit
// config override over the executable's version resource.
func resolveVersion(proc *gameproc.Process) (pointers.Version, string, error) {
	verStr := config.GetGameConfig().Version
	if verStr == "" {
		var err error
		verStr, err = proc.FileVersion()
		if err != nil {
			return pointers.Version{}, "", fmt.Errorf(
				"reading the game version: %w (set game.version in %s)", err, config.ConfigFileName)
		}
	}
	ver, err := pointers.ParseVersion(verStr)
	if err != nil {
		return pointers.Version{}, "", err
	}
	return ver, verStr, nil
}

// runLoop owns the engine: every tick and every console command runs on
// this goroutine.
func runLoop(ctx context.Context, proc *gameproc.Process) {
	lines := make(chan string)
	go readStdin(ctx, lines)

	// poll faster than the sampling interval; the engine's monotonic gate
	// decides which ticks actually take a sample
	period := time.Duration(engine.IntervalMs()) * time.Millisecond / 4
	if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}
	frame := time.NewTicker(period)
	defer frame.Stop()

	prompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c, err := command.Parse(line)
			if err != nil {
				fmt.Println(err)
				prompt()
				continue
			}
			if c.Kind == command.None {
				prompt()
				continue
			}
			if executeCommand(c) {
				return
			}
			prompt()
		case <-frame.C:
			if !proc.Running() {
				Logger.Warn("Game process exited")
				fmt.Println("\ngame process exited")
				salvageRecording()
				return
			}
			tickOnce()
		}
	}
}

// tickOnce drives one engine tick and hands an accepted sample to the
// sinks through the dispatcher.
func tickOnce() {
	start := time.Now()
	pt, ok := engine.Tick()
	tickTimer.Observe(time.Since(start))
	if !ok {
		return
	}
	dispatchEvent(streaming.TypeRoutePoint, worker.Sample{Point: pt, At: start})
}

// salvageRecording saves an in-flight recording when the game goes away
// under us; the usual save path is gone with the process.
func salvageRecording() {
	if !engine.Recording() || engine.PointCount() == 0 {
		return
	}
	path, err := routeSaver.Save(engine.Points(), engine.IntervalMs())
	if err != nil {
		Logger.Error("Failed to salvage the trajectory", "error", err)
		return
	}
	Logger.Info("Salvaged the trajectory", "path", path, "points", engine.PointCount())
	fmt.Printf("saved %d points to %s\n", engine.PointCount(), path)
}

// readStdin feeds console lines to the run loop and closes the channel on
// EOF so a piped script ends the session cleanly.
func readStdin(ctx context.Context, lines chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
	close(lines)
}

func prompt() {
	fmt.Print("> ")
}

// runDirect executes one command from the process arguments, for library
// work that should not need an attached game.
func runDirect(line string) {
	c, err := command.Parse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if c.Kind == command.None {
		return
	}
	executeCommand(c)
}

// dispatchEvent routes one event to the registered worker handlers.
func dispatchEvent(name string, payload any) {
	if _, err := eventDispatcher.Dispatch(dispatcher.Event{
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}); err != nil {
		Logger.Error("Event dispatch failed", "event", name, "error", err)
	}
}

// shutdown stops the loops in dependency order and drains every sink.
func shutdown() {
	Logger.Info("Shutting down...")
	if monitorService != nil {
		monitorService.Stop()
	}
	if workerManager != nil {
		workerManager.Stop()
	}
	if streamClient != nil {
		streamClient.Close()
	}
	if influxManager != nil {
		influxManager.Close()
	}
	if dbManager != nil {
		dbManager.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	SlogManager.Flush(ctx)
	if OTelProvider != nil {
		OTelProvider.Shutdown(ctx)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}
