package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/loggo"
	"github.com/pkg/errors"

	"bb-battery-state/adc"
	"bb-battery-state/config"
	"bb-battery-state/publishers/common"
	"bb-battery-state/publishers/dbus"
	"bb-battery-state/publishers/leds"
	"bb-battery-state/publishers/mqtt"
	"bb-battery-state/publishers/redis"
	"bb-battery-state/util"
	"bb-battery-state/worker"
)

var log = loggo.GetLogger("bbbs.cmd")

func newPublishers(ctx context.Context, cfg *config.Config) (common.Multi, error) {
	var pubs common.Multi
	add := func(name string, pub common.Publisher, err error) error {
		if err != nil {
			if closeErr := pubs.Close(); closeErr != nil {
				log.Errorf("closing publishers: %q", closeErr)
			}
			return errors.Wrapf(err, "creating %s publisher", name)
		}
		log.Infof("publishing battery state to %s", name)
		pubs = append(pubs, common.Named{Name: name, Publisher: pub})
		return nil
	}

	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err := add("mqtt", pub, err); err != nil {
			return nil, err
		}
	}
	if cfg.Redis.Enabled {
		pub, err := redis.NewPublisher(ctx, cfg.Redis)
		if err := add("redis", pub, err); err != nil {
			return nil, err
		}
	}
	if cfg.DBus.Enabled {
		pub, err := dbus.NewPublisher(cfg.DBus)
		if err := add("dbus", pub, err); err != nil {
			return nil, err
		}
	}
	if cfg.LEDs.Enabled {
		pub, err := leds.NewPublisher(cfg.LEDs)
		if err := add("leds", pub, err); err != nil {
			return nil, err
		}
	}
	return pubs, nil
}

// shutdown releases the publishers, then the ADC. Failures are logged.
func shutdown(reader adc.ADC, pubs common.Publisher) {
	if err := pubs.Close(); err != nil {
		log.Errorf("closing publishers: %q", err)
	}
	if err := reader.Cleanup(); err != nil {
		log.Errorf("cleaning up ADC: %q", err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgFile := flag.String("config", "", "bb-battery-state config file")
	flag.Parse()

	if *cfgFile == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.NewConfig(*cfgFile)
	if err != nil {
		log.Errorf("error parsing config: %q", err)
		os.Exit(1)
	}

	if err := util.SetupLogging(cfg); err != nil {
		log.Errorf("error setting up logging: %q", err)
		os.Exit(1)
	}

	reader := adc.NewIIO(cfg.ADC)
	if err := reader.Init(); err != nil {
		log.Errorf("Initialize ADC: FAILED: %q", err)
		os.Exit(1)
	}
	pubs, err := newPublishers(ctx, cfg)
	if err != nil {
		log.Errorf("error creating publishers: %q", err)
		shutdown(reader, common.Multi(nil))
		os.Exit(1)
	}

	batteryWorker, err := worker.NewWorker(ctx, cfg, reader, pubs)
	if err != nil {
		log.Errorf("error creating worker: %q", err)
		shutdown(reader, pubs)
		os.Exit(1)
	}

	if err := batteryWorker.Start(); err != nil {
		log.Errorf("starting battery worker: %q", err)
		shutdown(reader, pubs)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Infof("shutting down")
	if err := batteryWorker.Stop(); err != nil {
		log.Errorf("stopping battery worker: %q", err)
	}
	shutdown(reader, pubs)
}
