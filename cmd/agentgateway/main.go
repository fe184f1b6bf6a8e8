/*
This command provides an executable version of agentgateway's routing core.

For the list of command line options, run:

	agentgateway -help
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v2"

	"github.com/agentgateway/agentgateway/config"
	"github.com/agentgateway/agentgateway/extauthz"
	"github.com/agentgateway/agentgateway/logging"
	"github.com/agentgateway/agentgateway/model"
	"github.com/agentgateway/agentgateway/proxy"
	"github.com/agentgateway/agentgateway/snapshot"
)

var (
	version string
	commit  string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "" {
			version = info.Main.Version
		}
		if commit == "" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value[:min(8, len(setting.Value))]
					break
				}
			}
		}
	}
}

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("error processing config: %s", err)
	}

	log.SetLevel(cfg.ApplicationLogLevel)
	appLog := logging.New(logging.Options{Level: cfg.ApplicationLogLevel, JSON: cfg.ApplicationLogJSON})
	appLog.Infof("starting agentgateway version=%s commit=%s", version, commit)

	snap, err := loadBootstrapSnapshot(cfg)
	if err != nil {
		log.Fatalf("error loading bootstrap snapshot: %s", err)
	}

	store := snapshot.New()
	if snap != nil {
		if err := model.Validate(snap); err != nil {
			log.Fatalf("invalid bootstrap snapshot: %s", err)
		}
		store.Publish(snap)
	}

	upstream := proxy.NewHTTPUpstream()
	defer upstream.Close()

	servers := buildServers(cfg, store, upstream, appLog, snap)
	if len(servers) == 0 {
		log.Fatal("bootstrap snapshot has no binds; nothing to serve")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			appLog.Infof("listening addr=%s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.Errorf("server %s exited: %v", srv.Addr, err)
			}
		}(srv)
	}

	<-ctx.Done()
	appLog.Infof("shutdown signal received, draining")
	for _, srv := range servers {
		_ = srv.Shutdown(context.Background())
	}
	wg.Wait()
}

// buildServers constructs one http.Server per distinct Bind port named in
// the bootstrap snapshot, each fronted by its own proxy.Orchestrator scoped
// to that port: one orchestrator per bind, shared by every listener on it.
func buildServers(cfg *config.Config, store *snapshot.Store, upstream proxy.Upstream, appLog logging.Logger, snap *model.Snapshot) []*http.Server {
	if snap == nil {
		return nil
	}

	opts := []proxy.Option{
		proxy.WithLogger(appLog),
		proxy.WithDefaultTimeouts(cfg.DefaultRequestTimeout, cfg.DefaultBackendTimeout),
		proxy.WithMirrorRateLimit(rate.Limit(cfg.MirrorRatePerSecond), cfg.MirrorBurst),
		proxy.WithDefaultAuthzContextExtensions(cfg.AuthzContextExtensions()),
	}
	if cfg.AuthzTarget != "" {
		opts = append(opts, proxy.WithAuthzDialer(func(target string) (extauthz.Client, error) {
			if target == "" {
				target = cfg.AuthzTarget
			}
			return extauthz.Dial(target)
		}))
	}

	var servers []*http.Server
	for _, bind := range snap.Binds {
		o := proxy.New(store, upstream, bind.Port, opts...)
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", bind.Port),
			Handler: o,
		})
	}
	return servers
}

func loadBootstrapSnapshot(cfg *config.Config) (*model.Snapshot, error) {
	if cfg.SnapshotFile != "" {
		raw, err := os.ReadFile(cfg.SnapshotFile)
		if err != nil {
			return nil, err
		}
		var snap model.Snapshot
		if err := yaml.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		return &snap, nil
	}
	if cfg.SnapshotInline != nil {
		return cfg.SnapshotInline, nil
	}
	return nil, nil
}
