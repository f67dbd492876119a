package main

import (
	"flag"
	"log"

	"github.com/truevine-insights/spectrum/internal/config"
	"github.com/truevine-insights/spectrum/internal/web"
)

var (
	version = "dev" // set by ldflags during build
)

func main() {
	addr := flag.String("addr", "localhost:8080", "HTTP server address")
	cfgFile := flag.String("config", "", "config file path")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *cfgFile != "" {
		loaded, err := config.LoadFromFile(*cfgFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	cfg = cfg.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	server := web.NewServer(cfg)
	server.SetVersion(version)

	if err := server.Start(*addr); err != nil {
		log.Fatal(err)
	}
}
