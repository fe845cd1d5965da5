// cmd/gsmlink/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tamzrod/gsmlink/internal/api"
	"github.com/tamzrod/gsmlink/internal/config"
	"github.com/tamzrod/gsmlink/internal/device"
	"github.com/tamzrod/gsmlink/internal/link"
	"github.com/tamzrod/gsmlink/internal/logging"
	"github.com/tamzrod/gsmlink/internal/metrics"
	"github.com/tamzrod/gsmlink/internal/netbridge"
	"github.com/tamzrod/gsmlink/internal/scheduler"
	"github.com/tamzrod/gsmlink/internal/uplink"
	"github.com/tamzrod/gsmlink/internal/vessel"
	"github.com/tamzrod/gsmlink/internal/writer"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: gsmlink <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	lg := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Metrics
	// --------------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(reg)
	if err != nil {
		log.Fatalf("metrics setup failed: %v", err)
	}

	// --------------------
	// Capabilities
	// --------------------

	gw := device.New(device.Config{
		Path:    cfg.DevicePath(),
		Baud:    cfg.Baud,
		Timeout: ms(cfg.Timeouts.DeviceMs),
		Trace:   cfg.Trace,
	}, lg.With(logging.String("component", "device")))
	defer gw.Close()

	bridge := netbridge.New(netbridge.Commands{
		Dial:     cfg.PPP.Dial,
		Hangup:   cfg.PPP.Hangup,
		AddRoute: cfg.PPP.Route,
	}, netbridge.ExecRunner{}, lg.With(logging.String("component", "ppp")))

	up, err := uplink.New(uplink.Config{
		URL:     cfg.Uplink.URL,
		Timeout: ms(cfg.Uplink.TimeoutMs),
	}, nil, lg.With(logging.String("component", "uplink")))
	if err != nil {
		log.Fatalf("uplink setup failed: %v", err)
	}

	store := vessel.NewStore()
	stream := vessel.NewStream(cfg.SignalK.URL, store, lg.With(logging.String("component", "vessel")))

	// ---- status memory (optional) ----
	pub, closeStatus, err := writer.BuildPublisher(cfg.StatusMemory, lg.With(logging.String("component", "status")))
	if err != nil {
		log.Fatalf("status memory setup failed: %v", err)
	}
	defer closeStatus()

	observers := []link.Observer{collector}
	if pub != nil {
		observers = append(observers, pub)
	}

	// --------------------
	// State machine + triggers
	// --------------------

	m, err := link.New(link.Deps{
		Device:    gw,
		Network:   bridge,
		Uplink:    up,
		Vessel:    store,
		Events:    gw.Events(),
		Log:       lg.With(logging.String("component", "link")),
		Recorder:  collector,
		Observers: observers,
		Timeouts: link.Timeouts{
			Device:  ms(cfg.Timeouts.DeviceMs),
			Command: ms(cfg.Timeouts.CommandMs),
			Uplink:  ms(cfg.Uplink.TimeoutMs),
		},
	})
	if err != nil {
		log.Fatalf("link setup failed: %v", err)
	}

	tick := func(t link.Trigger) func() {
		return func() {
			if err := m.Tick(t); err != nil {
				lg.Debug(ctx, "Tick dropped", logging.String("trigger", t.String()), logging.Err(err))
			}
		}
	}
	sched, err := scheduler.New(lg.With(logging.String("component", "scheduler")),
		scheduler.Entry{Name: link.TriggerMinute.String(), Spec: cfg.Schedule.Minute, Fn: tick(link.TriggerMinute)},
		scheduler.Entry{Name: link.TriggerHourly.String(), Spec: cfg.Schedule.Hourly, Fn: tick(link.TriggerHourly)},
		scheduler.Entry{Name: link.TriggerUpload.String(), Spec: cfg.Schedule.Upload, Fn: tick(link.TriggerUpload)},
		scheduler.Entry{Name: link.TriggerHangup.String(), Spec: cfg.Schedule.Hangup, Fn: tick(link.TriggerHangup)},
	)
	if err != nil {
		log.Fatalf("scheduler setup failed: %v", err)
	}

	// --------------------
	// Run
	// --------------------

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	goRun(m.Run)
	goRun(stream.Run)
	if pub != nil {
		goRun(pub.Run)
	}
	if cfg.HTTP.Listen != "" {
		srv := api.New(cfg.HTTP.Listen, m, collector.Handler(), lg.With(logging.String("component", "api")))
		goRun(func(ctx context.Context) {
			if err := srv.Run(ctx); err != nil {
				lg.Error(ctx, "HTTP API failed", logging.Err(err))
			}
		})
	}

	sched.Start()
	lg.Info(ctx, "gsmlink started", logging.String("device", cfg.DevicePath()))

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn(ctx, "sd_notify ready failed", logging.Err(err))
	} else if ok {
		lg.Debug(ctx, "Notified systemd")
	}

	<-ctx.Done()
	lg.Info(context.Background(), "Shutting down")

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	sched.Stop()
	wg.Wait()

	lg.Info(context.Background(), "gsmlink stopped")
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
