package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/truevine-insights/spectrum/internal/batch"
	"github.com/truevine-insights/spectrum/internal/config"
	"github.com/truevine-insights/spectrum/internal/convert"
	"github.com/truevine-insights/spectrum/internal/metadata"
	"github.com/truevine-insights/spectrum/internal/paths"
	"github.com/truevine-insights/spectrum/internal/preset"
	"github.com/truevine-insights/spectrum/internal/rawtool"
	"github.com/truevine-insights/spectrum/internal/scanner"
)

type Server struct {
	router    *mux.Router
	hub       *Hub
	cfg       *config.Config
	resolver  *paths.Resolver
	scanner   *scanner.Scanner
	presets   *preset.Resolver
	orch      *batch.Orchestrator
	extractor *metadata.Extractor
	version   string
}

func NewServer(cfg *config.Config) *Server {
	resolver := paths.NewResolver(cfg.VolumesDriveLetter())
	presets := preset.NewResolver(cfg.DefaultPreset)
	converter := convert.New(
		rawtool.NewDcrawDecoder(),
		rawtool.NewJPEGEncoder(),
		presets,
		convert.Options{
			EnableSharpen:    cfg.EnableSharpen,
			SharpenRadius:    cfg.SharpenRadius,
			SharpenAmount:    cfg.SharpenAmount,
			SharpenThreshold: cfg.SharpenThreshold,
			AutoBright:       convert.AutoBrightMode(cfg.AutoBright),
			ChromaMode:       cfg.ChromaMode,
		},
	)
	orch := batch.New(resolver, converter, metadata.NewPropagator(), batch.Options{
		OutputExtension: cfg.OutputExtension,
		SkipExisting:    cfg.SkipExisting,
		Workers:         cfg.Jobs,
	})

	s := &Server{
		router:    mux.NewRouter(),
		hub:       NewHub(),
		cfg:       cfg,
		resolver:  resolver,
		scanner:   scanner.New(cfg.RawExtensions, cfg.OutputExtension),
		presets:   presets,
		orch:      orch,
		extractor: metadata.NewExtractor(),
		version:   "unknown",
	}

	go s.hub.Run()

	s.setupRoutes()
	return s
}

func (s *Server) SetVersion(v string) {
	s.version = v
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods("GET")
	api.HandleFunc("/browse", s.handleBrowse).Methods("GET")
	api.HandleFunc("/drives", s.handleDrives).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/convert", s.handleConvert).Methods("POST")
	api.HandleFunc("/convert/stream", s.handleConvertStream).Methods("POST")
	api.HandleFunc("/metadata", s.handleMetadata).Methods("GET")
	api.HandleFunc("/review", s.handleReview).Methods("POST")
	api.HandleFunc("/preview", s.handlePreview).Methods("GET")
	api.HandleFunc("/file", s.handleFile).Methods("GET")
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/ws", s.handleWebSocket)

	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("web/static")))
}

func (s *Server) Start(addr string) error {
	fmt.Printf("Starting Spectrum Web UI at http://%s\n", addr)
	return http.ListenAndServe(addr, s.router)
}
