// README: Entry point; loads config, wires the engine, stores and session manager, starts HTTP and background workers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"compass/internal/config"
	"compass/internal/engine"
	"compass/internal/events"
	httptransport "compass/internal/http"
	"compass/internal/infra"
	"compass/internal/maps"
	"compass/internal/modules/controller"
	"compass/internal/modules/location"
	"compass/internal/modules/mapobject"
	"compass/internal/modules/navigation"
	"compass/internal/modules/routing"
	"compass/internal/realtime"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// sessionInbound lets the hub reach the manager, which is created after the
// hub because the manager publishes through it.
type sessionInbound struct {
	*controller.Manager
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	deps := controller.Deps{Objects: mapobject.NewMemoryStore()}
	engineOpts := maps.Options{
		APIKey:    cfg.Maps.APIKey,
		Language:  cfg.Maps.Language,
		Region:    cfg.Maps.Region,
		Workers:   cfg.Maps.Workers,
		QueueSize: cfg.Maps.Queue,
		Timeout:   cfg.Maps.Timeout,
		MaxSnapM:  cfg.Maps.MaxSnapM,
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		deps.Objects = mapobject.NewRedisStore(redisClient)
		engineOpts.Cache = maps.NewRedisRouteCache(redisClient, cfg.Maps.CacheTTL)
	} else {
		log.Printf("main: COMPASS_REDIS_ADDR not set, map objects kept in memory")
	}

	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		if err := infra.Migrate(ctx, dbPool); err != nil {
			log.Fatal(err)
		}
		recorder := location.NewRecorder(location.NewStore(dbPool), 1024, cfg.Navigation.TrackBatchSize, cfg.Navigation.TrackFlush)
		goRun(recorder.Run)
		deps.Track = recorder
		deps.RouteLog = routing.NewStore(dbPool)
	} else {
		log.Printf("main: COMPASS_DB_DSN not set, tracks and route history are not stored")
	}

	if cfg.AMQP.URL != "" {
		conn, err := infra.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal(err)
		}
		defer conn.Close()
		publisher, err := events.NewAMQPPublisher(conn, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal(err)
		}
		defer publisher.Close()
		deps.Publisher = publisher
	}

	googleEngine, err := maps.NewGoogleEngine(engineOpts)
	if err != nil {
		log.Fatal(err)
	}
	goRun(googleEngine.Run)
	deps.Engine = googleEngine

	inbound := &sessionInbound{}
	hub := realtime.NewHub(inbound, 0)
	deps.Sink = hub

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
		if verifier, err = infra.NewFirebaseVerifier(ctx, app); err != nil {
			log.Fatalf("firebase init: %v", err)
		}
		messagingClient, err := infra.NewMessaging(ctx, app)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
		deps.Speaker = navigation.MultiSpeaker{
			navigation.SinkSpeaker{Sink: hub},
			navigation.NewFCMSpeaker(messagingClient, func(id string) string { return inbound.DeviceToken(id) }),
		}
	} else {
		log.Printf("main: COMPASS_FIREBASE_PROJECT_ID not set, running without auth")
	}

	profile, err := engine.ParseProfile(cfg.Navigation.DefaultProfile)
	if err != nil {
		log.Fatalf("COMPASS_DEFAULT_PROFILE: %v", err)
	}
	manager := controller.NewManager(ctx, deps, controller.Config{
		DefaultProfile:  profile,
		MetricUnits:     cfg.Navigation.MetricUnits,
		PressRadiusM:    cfg.Navigation.PressRadiusM,
		FindMaxItems:    cfg.Navigation.FindMaxItems,
		SpeechQueueSize: cfg.Navigation.SpeechQueueSize,
		HistoryLimit:    cfg.Navigation.HistoryLimit,
	})
	inbound.Manager = manager
	goRun(hub.Run)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Sessions: manager,
		Stream:   hub,
		Verifier: verifier,
		Version:  version,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router)
	if err := server.Run(ctx); err != nil {
		log.Printf("main: http server: %v", err)
	}

	stop()
	manager.Shutdown()
	wg.Wait()
	log.Printf("main: stopped")
}
