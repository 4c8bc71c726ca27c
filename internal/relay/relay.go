package relay

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/your-username/syslog-sender/internal/config"
	"github.com/your-username/syslog-sender/internal/monitoring"
	"github.com/your-username/syslog-sender/pkg/syslog"
)

// Relay forwards HTTP send requests as syslog datagrams
type Relay struct {
	cfg             config.RelayConfig
	target          config.TargetConfig
	defaultFacility syslog.Facility
	defaultLevel    syslog.Level
	clientOpts      []syslog.Option
	metrics         *monitoring.Metrics
	gatherer        prometheus.Gatherer
	health          *monitoring.HealthMonitor

	// client is shared by every request without an explicit host and is
	// not safe for concurrent use
	mu     sync.Mutex
	client *syslog.Client
}

// SendRequest is the body of POST /api/v1/send. Facility and level accept
// a keyword or a numeric code.
type SendRequest struct {
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Facility code   `json:"facility,omitempty"`
	Level    code   `json:"level,omitempty"`
	Text     string `json:"text"`
}

// code holds a JSON string or number verbatim
type code string

func (c *code) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*c = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*c = code(s)
	return nil
}

// New creates a relay with a shared client for the configured target
func New(cfg *config.Config, metrics *monitoring.Metrics, gatherer prometheus.Gatherer, version string) (*Relay, error) {
	facility, err := syslog.ParseFacility(cfg.Target.Facility)
	if err != nil {
		return nil, err
	}
	level, err := syslog.ParseLevel(cfg.Target.Level)
	if err != nil {
		return nil, err
	}

	var opts []syslog.Option
	if cfg.Target.Hostname != "" {
		opts = append(opts, syslog.WithHostname(cfg.Target.Hostname))
	}

	client, err := syslog.Dial(cfg.Target.Host, cfg.Target.Port, opts...)
	if err != nil {
		return nil, err
	}

	r := &Relay{
		cfg:             cfg.Relay,
		target:          cfg.Target,
		defaultFacility: facility,
		defaultLevel:    level,
		clientOpts:      opts,
		metrics:         metrics,
		gatherer:        gatherer,
		client:          client,
	}
	r.health = monitoring.NewHealthMonitor("syslog-relay", version, func() map[string]string {
		return map[string]string{
			"target":   net.JoinHostPort(r.target.Host, strconv.Itoa(r.target.Port)),
			"facility": r.defaultFacility.String(),
			"level":    r.defaultLevel.String(),
		}
	})

	return r, nil
}

// Router builds the HTTP routes
func (r *Relay) Router() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", r.health.HealthHandler())

		api.Group(func(protected chi.Router) {
			if r.cfg.JWTSecret != "" {
				protected.Use(RequireJWT([]byte(r.cfg.JWTSecret)))
			}
			protected.Post("/send", r.HandleSend())
		})
	})

	return router
}

// HandleSend handles POST /api/v1/send
func (r *Relay) HandleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, 64<<10)

		var body SendRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		facility, level, err := r.resolve(body)
		if err == nil {
			err = r.send(body, facility, level)
		}
		if err != nil {
			if errors.Is(err, syslog.ErrInvalidArgument) {
				r.metrics.RecordSendFailure(monitoring.ReasonInvalidArgument)
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			r.metrics.RecordSendFailure(monitoring.ReasonTransport)
			log.Error().Err(err).Str("request_id", middleware.GetReqID(req.Context())).Msg("Failed to relay syslog message")
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		r.metrics.RecordSent(facility.String(), level.String(), len(body.Text))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "sent",
			"priority": syslog.Priority(facility, level),
		})
	}
}

func (r *Relay) resolve(body SendRequest) (syslog.Facility, syslog.Level, error) {
	facility, level := r.defaultFacility, r.defaultLevel
	if body.Facility != "" {
		f, err := syslog.ParseFacility(string(body.Facility))
		if err != nil {
			return 0, 0, err
		}
		facility = f
	}
	if body.Level != "" {
		l, err := syslog.ParseLevel(string(body.Level))
		if err != nil {
			return 0, 0, err
		}
		level = l
	}
	if strings.TrimSpace(body.Text) == "" {
		return 0, 0, &syslog.ArgumentError{Arg: "text", Value: body.Text, Reason: "must not be blank"}
	}
	return facility, level, nil
}

func (r *Relay) send(body SendRequest, facility syslog.Facility, level syslog.Level) error {
	if body.Host == "" {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.client.Send(facility, level, body.Text)
	}

	port := body.Port
	if port == 0 {
		port = syslog.DefaultPort
	}
	return syslog.SendTo(body.Host, port, int(facility), int(level), body.Text, r.clientOpts...)
}

// Close releases the shared client
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
