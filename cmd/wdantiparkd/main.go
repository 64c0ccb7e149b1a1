// Command wdantiparkd runs the anti-park daemon directly, without the
// wdantipark CLI wrapper. Intended for init systems and systemd units.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/soundsrc/wdantiparkd/internal/config"
	"github.com/soundsrc/wdantiparkd/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: *logLevel,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
