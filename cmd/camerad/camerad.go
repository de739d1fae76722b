package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/camerad/internal/announce"
	"github.com/banshee-data/camerad/internal/api"
	"github.com/banshee-data/camerad/internal/calib"
	"github.com/banshee-data/camerad/internal/camera"
	"github.com/banshee-data/camerad/internal/config"
	"github.com/banshee-data/camerad/internal/control"
	"github.com/banshee-data/camerad/internal/monitoring"
	"github.com/banshee-data/camerad/internal/publish"
	"github.com/banshee-data/camerad/internal/timeutil"
	"github.com/banshee-data/camerad/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Run against a synthetic camera instead of hardware")
	listen      = flag.String("listen", "", "HTTP listen address (default \":8080\")")
	ip          = flag.String("ip", "", "Camera IP address")
	guid        = flag.String("guid", "", "Camera GUID (ignored when -ip is set)")
	frameID     = flag.String("frame-id", "", "Frame identifier stamped on published images")
	calibURL    = flag.String("calib-url", "", "Calibration document URL (file:// or http(s)://)")
	calibDB     = flag.String("calib-db", "", "Path to the calibration database (default \"calibration.db\")")
	mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL for state announcements (empty disables)")
	configFile  = flag.String("config", "", "Path to a JSON daemon config file")
	migrations  = flag.String("migrations", "internal/calib/migrations", "Path to migration files (migrate subcommand)")
	debugLogs   = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Geometry for the synthetic device when the initial configuration leaves
// the camera on its device defaults.
const (
	devDefaultWidth  = 640
	devDefaultHeight = 480
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	monitoring.SetDebug(*debugLogs)

	cfg := config.EmptyDaemonConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadDaemonConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	// Explicit flags override whatever the config file says.
	if *listen != "" {
		cfg.Listen = listen
	}
	if *devMode {
		cfg.DevMode = devMode
	}
	if *calibDB != "" {
		cfg.CalibrationDB = calibDB
	}
	if *ip != "" {
		cfg.IP = ip
	}
	if *guid != "" {
		cfg.GUID = guid
	}
	if *mqttBroker != "" {
		cfg.MQTTBroker = mqttBroker
	}
	if *frameID != "" {
		cfg.Camera.FrameID = *frameID
	}
	if *calibURL != "" {
		cfg.Camera.CalibrationURL = *calibURL
	}

	// Subcommand dispatch comes before daemon startup so migrations run
	// without a camera attached.
	if flag.Arg(0) == "migrate" {
		calib.RunMigrateCommand(flag.Args()[1:], cfg.GetCalibrationDB(), *migrations)
		return
	}

	log.Printf("Starting %s", version.String())

	camCfg := cfg.Camera
	camFrameID := camCfg.FrameID
	if camFrameID == "" {
		camFrameID = camera.DefaultFrameID
	}

	identity := cfg.GetIdentity()
	var driver camera.Driver
	var mock *camera.MockDriver
	if cfg.GetDevMode() {
		mock = camera.NewMockDriver()
		driver = mock
		if identity.IP == "" && identity.GUID == "" {
			identity = camera.Identity{GUID: "dev"}
		}
		log.Printf("Dev mode: synthetic camera %s, frames every %s", identity, cfg.GetDevFrameInterval())
	} else {
		// Hardware drivers plug in through camera.Driver; this build
		// carries only the synthetic device.
		// TODO: wire the vendor SDK driver once the cgo binding lands.
		if identity.IP == "" && identity.GUID == "" {
			log.Fatal("Camera identity is required: set -ip or -guid")
		}
		log.Fatal("No hardware driver compiled into this build; run with -dev")
	}

	store, err := calib.Open(cfg.GetCalibrationDB())
	if err != nil {
		log.Fatalf("Failed to open calibration store: %v", err)
	}
	defer store.Close()

	var ann *announce.Announcer
	if broker := cfg.GetMQTTBroker(); broker != "" {
		a, err := announce.Connect(broker, cfg.GetMQTTClientID(), camFrameID,
			announce.WithPrefix(cfg.GetMQTTPrefix()))
		if err != nil {
			log.Printf("MQTT connect to %s failed, announcements disabled: %v", broker, err)
		} else {
			ann = a
			log.Printf("Announcing camera state to %s", broker)
		}
	}
	defer ann.Close()
	defer ann.AnnounceOffline(camFrameID)

	pub := publish.NewPublisher()
	defer pub.Close()
	bridge := control.NewBridge(publish.RawConverter{}, pub)
	session := camera.NewSession(driver, identity)
	synth := calib.NewSynthesizer(store)

	// A nil announcer is safe to observe through; every method checks.
	nodeOpts := []control.NodeOption{control.WithNodeObserver(ann.ObserveReconfigure)}
	if rec, ok, err := store.Load(camFrameID); err != nil {
		log.Printf("Could not read stored calibration for %s: %v", camFrameID, err)
	} else if ok {
		log.Printf("Resuming stored calibration %q for %s", rec.Name, camFrameID)
		nodeOpts = append(nodeOpts, control.WithNodeRecord(rec))
	}

	node := control.NewNode(session, synth, bridge, camCfg, nodeOpts...)

	// Create a wait group for the control actor, HTTP server, and dev
	// frame generator routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the control actor that owns the camera session
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := node.Run(ctx); err != nil && err != context.Canceled {
			// Startup is the one failure that takes the process down: a
			// daemon that cannot open its camera has nothing to serve.
			log.Fatalf("Camera startup failed: %v", err)
		}
		log.Print("control routine terminated")
	}()

	// drive the synthetic device with frames in dev mode
	if mock != nil {
		width, height := uint32(camCfg.Width), uint32(camCfg.Height)
		if width == 0 || height == 0 {
			width, height = devDefaultWidth, devDefaultHeight
		}
		format := camera.PixelFormat(camCfg.PixelFormat)
		if format == "" {
			format = camera.FormatMono8
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			mock.Device.GenerateFrames(ctx, timeutil.RealClock{}, cfg.GetDevFrameInterval(), width, height, format)
			log.Print("frame generator routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		// create a new API server instance over the control actor and
		// mount its handlers alongside the admin debug routes
		srv := api.NewServer(node, store, pub)
		mux := srv.ServeMux()
		srv.AttachAdminRoutes(mux)
		store.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", cfg.GetListen())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a shorter timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
