// Package router assembles the engine from configuration and exposes its
// HTTP surface.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/rs/cors"

	"github.com/xsp-lib/xsp/config"
	"github.com/xsp-lib/xsp/endpoints/adtag"
	"github.com/xsp-lib/xsp/metrics"
	"github.com/xsp-lib/xsp/orchestrator"
	"github.com/xsp-lib/xsp/policy"
	"github.com/xsp-lib/xsp/resolver"
	"github.com/xsp-lib/xsp/respcache"
	"github.com/xsp-lib/xsp/state"
	"github.com/xsp-lib/xsp/transport"
	"github.com/xsp-lib/xsp/util/task"
	"github.com/xsp-lib/xsp/util/timeutil"
)

// Router is the engine's HTTP surface plus the handles needed to shut its
// background work down.
type Router struct {
	*httprouter.Router

	Metrics *metrics.Engine

	backend   state.Backend
	sweepTask *task.TickerTask
}

// New wires every component from cfg: transport, VAST resolver, response
// cache (with its expiry sweep), state backend, policies, orchestrator and
// the HTTP endpoints.
func New(cfg *config.Configuration) (*Router, error) {
	clock := &timeutil.RealTime{}

	store, err := respcache.NewStore(cfg.Cache, clock)
	if err != nil {
		return nil, err
	}
	cache := respcache.New(store)

	var sweepTask *task.TickerTask
	if lru, ok := store.(*respcache.LRU); ok {
		sweepTask = task.NewTickerTask(time.Duration(cfg.Cache.SweepIntervalS)*time.Second, task.RunnerFunc(func() error {
			if removed := lru.SweepExpired(); removed > 0 {
				glog.V(2).Infof("Cache sweep removed %d expired entries", removed)
			}
			return nil
		}))
		sweepTask.Start()
	}

	backend, err := state.NewBackend(cfg.State, clock)
	if err != nil {
		return nil, err
	}

	engine := metrics.New(gometrics.NewRegistry())
	if cfg.Metrics.Influx.Enabled {
		go engine.Export(cfg.Metrics.Influx)
	}

	chainResolver := resolver.NewVAST(transport.NewHTTP(cfg.Transport), cfg.Resolver)

	orch := orchestrator.New(cache, time.Duration(cfg.Cache.DefaultTTLS)*time.Second, engine)
	orch.Register(orchestrator.ProtocolVAST, chainResolver)

	endpoint := adtag.NewEndpoint(orch,
		policy.NewFrequencyCapper(backend, cfg.Policy),
		policy.NewBudgetTracker(backend, cfg.Policy),
		engine)

	r := &Router{
		Router:    httprouter.New(),
		Metrics:   engine,
		backend:   backend,
		sweepTask: sweepTask,
	}
	r.GET("/adtag/:protocol", endpoint.Handle)
	r.GET("/status", statusHandler)
	return r, nil
}

// Shutdown stops the cache sweep and releases the state backend.
func (r *Router) Shutdown() {
	r.sweepTask.Stop()
	if err := r.backend.Close(); err != nil {
		glog.Warningf("Error closing state backend: %v", err)
	}
}

// Admin returns the admin-port mux.
func Admin() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// SupportCORS wraps the main handler with a permissive CORS layer. Ad tags
// are fetched from arbitrary publisher pages, so every origin must be able
// to call us; nothing here is authorized by cookies.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}

func statusHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
