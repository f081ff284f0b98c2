package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"transactive-agent/internal/agent"
	"transactive-agent/internal/config"
	"transactive-agent/internal/demand"
	"transactive-agent/internal/metrics"
	"transactive-agent/internal/models"
	"transactive-agent/internal/mqtt"
	"transactive-agent/internal/status"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	cfg, v, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Agent.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown log level %q, keeping info", cfg.Agent.LogLevel)
	}

	logger.Infof("Starting transactive agent: broker=%s interval=%ds devices=%d",
		cfg.MQTT.Broker, cfg.Agent.PredictionInterval, len(cfg.Models))

	registry, err := demand.NewRegistry(cfg.ModelEntries(), logger)
	if err != nil {
		logger.Fatalf("Invalid model configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	manager := agent.NewManager(cfg, registry, m, logger)

	mqttClient, err := mqtt.NewClient(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create MQTT client: %v", err)
	}
	mqttClient.SetTopics(manager.Topics())
	mqttClient.SetCallbacks(manager.HandleTelemetry, manager.HandleDropped)
	manager.SetPublisher(mqttClient)

	statusServer := status.NewServer(cfg, manager.GetStatus, m.Handler(), manager.Records(), logger)
	manager.SetRecordCallback(func(record models.PredictionRecord) {
		statusServer.Broadcast(record)
	})

	manager.SetReloadCallback(func(topics []string) {
		mqttClient.SetTopics(topics)
		if cfg.MQTT.Discovery {
			mqttClient.PublishDiscovery(topics)
		}
	})

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Infof("Config file changed: %s", e.Name)
		reloaded, err := config.Decode(v)
		if err != nil {
			logger.Errorf("Failed to decode config: %v", err)
			return
		}
		if err := manager.Reconfigure(reloaded.ModelEntries()); err != nil {
			logger.Errorf("Keeping previous models: %v", err)
		}
	})
	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
	}

	var wg sync.WaitGroup

	if cfg.Status.Port > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusServer.Start(ctx); err != nil {
				logger.Errorf("Status server error: %v", err)
				cancel()
			}
		}()
	} else {
		logger.Info("Status server disabled")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.Start(ctx)
	}()

	if err := mqttClient.Connect(); err != nil {
		logger.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer mqttClient.Disconnect()

	if cfg.MQTT.Discovery {
		mqttClient.PublishDiscovery(manager.Topics())
	}

	logger.Info("All services started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down...")
	cancel()

	statusServer.Stop()

	wg.Wait()
	logger.Info("Shutdown complete")
}
