package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/fare"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/maps"
	"github.com/example/ride-dispatch/internal/presence"
	"github.com/example/ride-dispatch/internal/storage"
)

// Server is the HTTP/WebSocket boundary of the dispatch engine. It
// trusts the auth gateway in front of it: caller identity arrives in
// headers, never credentials.
type Server struct {
	cfg      config.ServerConfig
	log      *slog.Logger
	orch     *dispatch.Orchestrator
	geo      geo.Index
	presence *presence.WSRegistry
	kafka    *ingest.KafkaProducer
	mux      *mux.Router
}

// NewServer wires the dispatch engine from config. Redis and Postgres
// are optional: without them the server falls back to in-process
// stores, which is enough for a single-node local run.
func NewServer(cfg config.ServerConfig, log *slog.Logger) (*Server, error) {
	var index geo.Index
	if cfg.RedisAddr != "" {
		index = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		index = geo.NewMemoryIndex()
	}

	var rides storage.RideStore
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresRideStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		rides = ps
	} else {
		rides = storage.NewMemoryRideStore()
	}

	var resolver maps.Resolver
	if cfg.MapsAPIKey != "" {
		g, err := maps.NewGoogleResolver(cfg.MapsAPIKey)
		if err != nil {
			return nil, err
		}
		resolver = g
	} else {
		log.Warn("MAPS_API_KEY not set; fare quotes and ride creation will fail")
		resolver = maps.Disabled{}
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	reg := presence.NewWSRegistry()
	orch := &dispatch.Orchestrator{
		Fare:       fare.NewEngine(nil),
		Geo:        index,
		Presence:   reg,
		Rides:      rides,
		Riders:     storage.NewMemoryRiders(),
		Maps:       resolver,
		Logger:     log,
		RadiusKm:   cfg.DispatchRadiusKm,
		CodeDigits: cfg.CodeDigits,
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		orch:     orch,
		geo:      index,
		presence: reg,
		kafka:    kp,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/rides/fare", s.handleQuoteFare).Methods("GET")
	s.mux.HandleFunc("/api/rides/confirm", s.handleConfirmRide).Methods("POST")
	s.mux.HandleFunc("/api/rides/start", s.handleStartRide).Methods("POST")
	s.mux.HandleFunc("/api/rides/end", s.handleEndRide).Methods("POST")
	s.mux.HandleFunc("/internal/operator/locations", s.handleOperatorLocation).Methods("POST")
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
