// README: Entry point; runs the simulated dispatch backend and, with -demo,
// drives the full client core through one scripted ride against it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"ridecore/internal/booking"
	"ridecore/internal/config"
	"ridecore/internal/dispatch"
	"ridecore/internal/infra"
	"ridecore/internal/maps"
	"ridecore/internal/modules/location"
	"ridecore/internal/modules/matching"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/modules/ride"
	"ridecore/internal/sim"
	"ridecore/internal/types"
)

func main() {
	_ = godotenv.Load()

	demo := flag.Bool("demo", false, "run one scripted ride against the sim and exit")
	addr := flag.String("addr", envOr("RIDECORE_SIM_ADDR", ":8090"), "sim listen address")
	flag.Parse()

	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simSrv := sim.NewServer(sim.Options{
		AutoAccept:  *demo,
		AcceptAfter: 300 * time.Millisecond,
		DriverID:    "sim-driver-1",
	}, log)
	httpSrv := &http.Server{Addr: *addr, Handler: simSrv.Routes()}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()
	log.WithField("addr", *addr).Info("sim backend listening")

	if *demo {
		if err := runDemo(ctx, &cfg, hostFor(*addr), log); err != nil {
			log.WithError(err).Error("demo ride failed")
		}
	} else {
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// runDemo builds the whole client core against the local sim and walks one
// ride from request to payment.
func runDemo(ctx context.Context, cfg *config.Config, host string, log *logrus.Logger) error {
	cfg.Dispatch.URL = "ws://" + host + "/ws"
	cfg.Booking.BaseURL = "http://" + host

	var repo ride.Repository = ride.NewMemoryRepository()
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		repo = ride.NewPostgresRepository(pool)
	}

	var registry location.Registry = location.NewMemoryRegistry()
	if cfg.Redis.Addr != "" {
		registry = location.NewRedisRegistry(infra.NewRedis(cfg.Redis.Addr))
	}

	var routes maps.RouteProvider
	if cfg.Maps.APIKey != "" {
		svc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return fmt.Errorf("maps: %w", err)
		}
		routes = svc
	}

	router := dispatch.NewRouter(log)
	mgr := dispatch.NewManager(cfg.Dispatch, router, log)
	locSvc := location.NewService(registry, log)

	coord := ride.NewCoordinator(ride.Deps{
		Repo:         repo,
		Pricing:      pricing.NewService(cfg.Pricing),
		Matcher:      matching.NewService(registry, cfg.Matching),
		Routes:       routes,
		Conn:         mgr,
		Router:       router,
		Backend:      booking.NewClient(cfg.Booking.BaseURL, log),
		Locations:    locSvc,
		Log:          log,
		PollInterval: cfg.Dispatch.DriverPollInterval,
	})
	defer coord.Dispose()

	mgr.SetOnConnected(func() { go coord.Reconcile(context.Background()) })
	mgr.SetOnConnectivityLost(func() { log.Warn("dispatch link lost; falling back to polling") })
	mgr.Connect("demo-rider", "rider")
	defer mgr.Close()

	pickup := types.Point{Lat: -1.9441, Lng: 30.0619, Address: "Kigali Convention Centre"}
	dropoff := types.Point{Lat: -1.9300, Lng: 30.0700, Address: "Kimironko Market"}

	// a nearby driver so the request carries candidates
	pos := types.Point{Lat: pickup.Lat + 0.005, Lng: pickup.Lng}
	avail := true
	if err := locSvc.Apply(ctx, location.Update{DriverID: "sim-driver-1", Name: "Sim Driver", Position: &pos, Available: &avail}); err != nil {
		return err
	}

	updates := make(chan ride.Ride, 16)
	coord.Subscribe(func(r ride.Ride) {
		select {
		case updates <- r:
		default:
		}
	})

	snap, err := coord.RequestRide(ctx, ride.RideRequest{
		RiderID:       "demo-rider",
		Pickup:        pickup,
		Destination:   dropoff,
		PaymentMethod: "mobile_money",
	})
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"ride_id": snap.ID,
		"fare":    snap.Fare.String(),
	}).Info("ride requested")

	if err := waitFor(ctx, updates, ride.StatusDriverAssigned); err != nil {
		return err
	}
	log.Info("driver assigned")

	steps := []func(context.Context, types.ID) (ride.Ride, error){
		coord.StartRide,
		coord.CompleteRide,
	}
	for _, step := range steps {
		if _, err := step(ctx, snap.ID); err != nil {
			return err
		}
	}

	paid, err := coord.SubmitPayment(ctx, snap.ID, "mobile_money")
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"ride_id": paid.ID,
		"status":  paid.Status,
		"fare":    paid.Fare.String(),
	}).Info("ride settled")
	return nil
}

// waitFor drains ride updates until the wanted status shows up.
func waitFor(ctx context.Context, updates <-chan ride.Ride, want ride.Status) error {
	deadline := time.NewTimer(5 * time.Second)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for %s", want)
		case r := <-updates:
			if r.Status == want {
				return nil
			}
		}
	}
}

func hostFor(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
