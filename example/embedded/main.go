// Embeds the bridge with a stdout sink instead of the MQTT endpoint.
// Useful for checking what a simulator session produces before wiring a
// real telemetry backend.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/tri2510/carla-vss-bridge/pkg/vssbridge"
)

func main() {
	cfg, err := vssbridge.LoadConfig("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Metrics.Addr = ""

	stdout := vssbridge.NewCallbackSink("stdout", func(batch []vssbridge.Signal) error {
		for _, sig := range batch {
			fmt.Printf("%s = %v\n", sig.Path, sig.Value)
		}
		return nil
	})

	rt, err := vssbridge.NewRuntime(cfg, vssbridge.WithSink(stdout))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("bridge error: %v", err)
	}
}
