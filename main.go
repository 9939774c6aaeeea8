package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/suryavirkapur/DrivinData/internal/api"
	"github.com/suryavirkapur/DrivinData/internal/config"
	"github.com/suryavirkapur/DrivinData/internal/db"
	"github.com/suryavirkapur/DrivinData/internal/sensors"
	"github.com/suryavirkapur/DrivinData/internal/trip"
)

var (
	devMode    = flag.Bool("dev", false, "Replay fixture sensor data instead of opening real devices")
	configPath = flag.String("config", "", "Path to JSON config file")

	// Flags override the config file; empty/zero means unset.
	listen       = flag.String("listen", "", "Listen address (default :8080)")
	dbPath       = flag.String("db", "", "Path to the trip database (default drivindata.db)")
	displayUnits = flag.String("units", "", "Display unit for speeds: mps, kmph, or mph (default kmph)")
	gpsPort      = flag.String("gps-port", "", "Serial port of the positioning receiver (default /dev/ttyACM0)")
	gpsBaud      = flag.Int("gps-baud", 0, "Baud rate of the positioning receiver (default 9600)")
	mqttBroker   = flag.String("mqtt-broker", "", "MQTT broker URL for the accelerometer feed (default tcp://localhost:1883)")
	mqttTopic    = flag.String("mqtt-topic", "", "MQTT topic carrying accelerometer readings (default drivindata/motion)")
	threshold    = flag.Float64("threshold", 0, "Incident detection threshold in g (default 2.5)")
)

const fixtureReplayInterval = 200 * time.Millisecond

func pickString(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

// monitorer is the common shape of all sensor producers.
type monitorer interface {
	Monitor(ctx context.Context) error
}

func main() {
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	databasePath := pickString(*dbPath, cfg.GetDBPath())

	if args := flag.Args(); len(args) > 0 {
		runCommand(args, databasePath)
		return
	}

	database, err := db.NewDB(databasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	// A session left open by a crash can never receive more samples; close
	// it so the history is not stuck with a dangling trip.
	if stale, err := database.ActiveSession(); err != nil {
		log.Fatalf("failed to check for open sessions: %v", err)
	} else if stale != nil {
		log.Printf("closing session %d left open by previous run", stale.ID)
		if err := database.CloseSession(stale.ID, time.Now().UTC()); err != nil {
			log.Fatalf("failed to close stale session: %v", err)
		}
	}

	positions := sensors.NewBus[sensors.PositionSample]()
	motions := sensors.NewBus[sensors.MotionSample]()

	gpsConfig := sensors.GPSConfig{
		Port:            pickString(*gpsPort, cfg.GetGPSPort()),
		Baud:            cfg.GetGPSBaud(),
		MinInterval:     cfg.GetMinFixInterval(),
		MinDisplacement: cfg.GetMinFixDisplacementMeters(),
	}
	if *gpsBaud != 0 {
		gpsConfig.Baud = *gpsBaud
	}

	var gps, motion monitorer
	if *devMode {
		nmeaData, err := os.ReadFile("fixtures/nmea.txt")
		if err != nil {
			log.Fatalf("failed to open position fixture: %v", err)
		}
		motionData, err := os.ReadFile("fixtures/motion.txt")
		if err != nil {
			log.Fatalf("failed to open motion fixture: %v", err)
		}
		// Replayed fixtures move slowly; don't let the displacement floor
		// swallow them.
		gpsConfig.MinInterval = 0
		gpsConfig.MinDisplacement = 0
		gps = sensors.NewMockGPSProducer(positions, gpsConfig, nmeaData, fixtureReplayInterval)
		motion = sensors.NewMockMotionProducer(motions, motionData, fixtureReplayInterval, nil)
	} else {
		gps = sensors.NewGPSProducer(positions, gpsConfig)
		motion = sensors.NewMQTTMotionProducer(motions, sensors.MQTTConfig{
			Broker: pickString(*mqttBroker, cfg.GetMQTTBroker()),
			Topic:  pickString(*mqttTopic, cfg.GetMQTTTopic()),
		})
	}

	hub := api.NewLiveHub()

	detectorThreshold := cfg.GetIncidentThreshold()
	if *threshold != 0 {
		detectorThreshold = *threshold
	}
	detector := &trip.Detector{
		Threshold: detectorThreshold,
		Notifier:  trip.Notifiers{trip.LogNotifier{}, hub},
	}

	recorder := trip.NewRecorder(trip.RecorderConfig{
		Store:     database,
		Positions: positions,
		Motions:   motions,
		Detector:  detector,
		Observer:  hub,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the producer monitor routines to manage IO with the sensors
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gps.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("position producer failed: %v", err)
		}
		log.Print("position producer terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := motion.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("motion producer failed: %v", err)
		}
		log.Print("motion producer terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		units := pickString(*displayUnits, cfg.GetUnits())
		mux := api.NewServer(recorder, database, units, hub).ServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// over Tailscale)
		database.AttachAdminRoutes(mux)

		addr := pickString(*listen, cfg.GetListenAddr())
		log.Printf("listening on %s", addr)
		if err := api.ListenAndServe(ctx, addr, api.LoggingMiddleware(mux)); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	// End any in-progress trip before exit so its row gets an end time.
	if err := recorder.Stop(context.Background()); err != nil {
		log.Printf("failed to stop recording on shutdown: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
