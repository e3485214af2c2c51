package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tri2510/carla-vss-bridge/pkg/vssbridge"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("carla-vss-bridge %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to an optional YAML configuration file")

	carlaHost := fs.String("carla-host", "127.0.0.1", "Simulator RPC host")
	carlaPort := fs.Int("carla-port", 2000, "Simulator RPC port")
	carlaTimeout := fs.Duration("carla-timeout", 5*time.Second, "Simulator connection timeout")
	role := fs.String("vehicle-role-name", "hero", "Role name of the vehicle to monitor")
	vehicleID := fs.Int("vehicle-id", 0, "Explicit actor id to monitor (overrides role name)")
	kuksaHost := fs.String("kuksa-host", "127.0.0.1", "Telemetry sink host")
	kuksaPort := fs.Int("kuksa-port", 55555, "Telemetry sink port")
	speedPath := fs.String("vss-speed-path", "Vehicle.Speed", "VSS path for the speed signal")
	rpmPath := fs.String("vss-rpm-path", "Vehicle.Powertrain.CombustionEngine.Speed", "VSS path for the RPM signal")
	maxSpeed := fs.Float64("max-speed-kmh", 160, "Speed corresponding to max RPM mapping")
	rpmIdle := fs.Float64("rpm-idle", 800, "Idle RPM")
	rpmMax := fs.Float64("rpm-max", 5000, "Max RPM")
	interval := fs.Duration("update-interval", 100*time.Millisecond, "Time between updates")
	reconnect := fs.Duration("reconnect-delay", 2*time.Second, "Delay before redialing a lost simulator")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	metricsAddr := fs.String("metrics-addr", ":9100", "Prometheus metrics listen address")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := vssbridge.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Explicitly set flags win over file and environment values.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "carla-host":
			cfg.Carla.Host = *carlaHost
		case "carla-port":
			cfg.Carla.Port = *carlaPort
		case "carla-timeout":
			cfg.Carla.Timeout = *carlaTimeout
		case "vehicle-role-name":
			cfg.Vehicle.Role = *role
		case "vehicle-id":
			cfg.Vehicle.ID = *vehicleID
		case "kuksa-host":
			cfg.Kuksa.Host = *kuksaHost
		case "kuksa-port":
			cfg.Kuksa.Port = *kuksaPort
		case "vss-speed-path":
			cfg.Signals.SpeedPath = *speedPath
		case "vss-rpm-path":
			cfg.Signals.RPMPath = *rpmPath
		case "max-speed-kmh":
			cfg.Mapping.MaxSpeedKMH = *maxSpeed
		case "rpm-idle":
			cfg.Mapping.RPMIdle = *rpmIdle
		case "rpm-max":
			cfg.Mapping.RPMMax = *rpmMax
		case "update-interval":
			cfg.Bridge.UpdateInterval = *interval
		case "reconnect-delay":
			cfg.Bridge.ReconnectDelay = *reconnect
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := vssbridge.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to the configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := vssbridge.LoadConfig(*cfgPath); err != nil {
		return err
	}
	if *cfgPath == "" {
		fmt.Println("defaults and environment look good")
	} else {
		fmt.Printf("config %s looks good\n", *cfgPath)
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"bridge_ticks_total":         0,
		"bridge_publishes_total":     0,
		"bridge_ticks_skipped_total": 0,
		"bridge_speed_kmh":           0,
		"bridge_rpm":                 0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] ticks=%.0f published=%.0f skipped=%.0f speed=%.3f rpm=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["bridge_ticks_total"],
		targets["bridge_publishes_total"],
		targets["bridge_ticks_skipped_total"],
		targets["bridge_speed_kmh"],
		targets["bridge_rpm"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`carla-vss-bridge

Streams a simulated vehicle's speed and estimated engine RPM to a VSS
telemetry endpoint, surviving outages of either side.

Usage:
  carla-vss-bridge <command> [flags]

Commands:
  run        Start the bridge
  validate   Load and validate a config file without starting the bridge
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  carla-vss-bridge run -carla-host 10.0.0.5 -vehicle-role-name hero
  carla-vss-bridge run -config ./bridge.yaml -log-level debug
  carla-vss-bridge validate -config ./bridge.yaml
  carla-vss-bridge stats -url http://localhost:9100/metrics -interval 1s
`)
}
