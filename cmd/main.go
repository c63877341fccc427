package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/swarm/featureflag"
	"github.com/aukilabs/swarm/geom"
	swarmhttp "github.com/aukilabs/swarm/http"
	"github.com/aukilabs/swarm/models"
	"github.com/aukilabs/swarm/simulation"
	swarmwebsocket "github.com/aukilabs/swarm/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The swarm version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "swarm_info",
		Help:        "Swarm information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"SWARM_ADDR"                 help:"Listening address for viewer connections."`
	AdminAddr          string        `cli:""        env:"SWARM_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"SWARM_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"SWARM_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"SWARM_LOG_INDENT"           help:"Indent logs."`
	FrameDuration      time.Duration `cli:",hidden" env:"SWARM_FRAME_DURATION"       help:"The duration of a simulation frame."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"SWARM_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle viewer will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"SWARM_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	World              worldConfig   `cli:""        env:"-"                          help:"Simulation configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"SWARM_FEATURE_FLAGS"        help:"Comma separated feature flags."`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type worldConfig struct {
	Width     int `cli:"" env:"SWARM_WORLD_WIDTH"      help:"The width of the simulated world."`
	Height    int `cli:"" env:"SWARM_WORLD_HEIGHT"     help:"The height of the simulated world."`
	MaxDepth  int `cli:"" env:"SWARM_WORLD_MAX_DEPTH"  help:"The maximum depth of the spatial index."`
	MaxBoids  int `cli:"" env:"SWARM_WORLD_MAX_BOIDS"  help:"The maximum number of boids alive at once."`
	BoidCount int `cli:"" env:"SWARM_WORLD_BOID_COUNT" help:"The number of boids spawned at start."`
	StarCount int `cli:"" env:"SWARM_WORLD_STAR_COUNT" help:"The number of background stars."`
	Seed      int `cli:"" env:"SWARM_WORLD_SEED"       help:"The random seed of the simulation. 0 picks a random one."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"SWARM_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"SWARM_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"SWARM_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"SWARM_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	defaults := simulation.DefaultConfig()

	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		FrameDuration:      time.Second / 60,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Width:     int(defaults.World.Size.X),
			Height:    int(defaults.World.Size.Y),
			MaxDepth:  defaults.MaxDepth,
			MaxBoids:  defaults.MaxBoids,
			BoidCount: defaults.BoidCount,
			StarCount: defaults.StarCount,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the swarm simulation server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "swarm",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	world, err := simulation.NewWorld(simulationConfig(conf), newRand(conf.World.Seed))
	if err != nil {
		logs.Fatal(errors.New("creating the simulation failed").Wrap(err))
	}

	session := models.NewSession(1, conf.FrameDuration, world)
	defer session.Close()
	go session.StartDispatchFrames()

	featureFlags := featureflag.New(conf.FeatureFlags)

	var service http.ServeMux
	service.Handle("/health", swarmhttp.HandleWithCORS(http.HandlerFunc(swarmhttp.HandleHealthCheck)))
	service.Handle("/version", swarmhttp.HandleWithCORS(swarmhttp.HandleVersion(version)))
	service.Handle("/ready", swarmhttp.HandleWithCORS(swarmhttp.HandleReadyCheck(session.Running)))

	service.Handle("/", websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h swarmwebsocket.Handler = &swarmwebsocket.ViewerHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				Session:           session,
				FeatureFlags:      featureFlags,
			}
			h = swarmwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = swarmwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			swarmwebsocket.Handle(ctx, conn, h)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", swarmhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", swarmhttp.HandleReadyCheck(session.Running))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("session_uuid", session.SessionUUID).
		WithTag("boids", conf.World.BoidCount).
		WithTag("feature_flags", featureFlags.Names()).
		Info("starting swarm server")

	swarmhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			swarmhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func simulationConfig(conf config) simulation.Config {
	c := simulation.DefaultConfig()
	c.World = geom.NewRect(0, 0, float64(conf.World.Width), float64(conf.World.Height))
	c.MaxDepth = conf.World.MaxDepth
	c.MaxBoids = conf.World.MaxBoids
	c.BoidCount = conf.World.BoidCount
	c.StarCount = conf.World.StarCount
	return c
}

func newRand(seed int) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.ClientIdleTimeout <= 0 {
		return errors.New("client idle timeout must be positive").
			WithTag("client_idle_timeout", conf.ClientIdleTimeout)
	}

	if conf.LogSummaryInterval <= 0 {
		return errors.New("log summary interval must be positive").
			WithTag("log_summary_interval", conf.LogSummaryInterval)
	}

	if err := simulationConfig(conf).Validate(); err != nil {
		return errors.New("invalid world configuration").Wrap(err)
	}

	return nil
}
