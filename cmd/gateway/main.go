package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethan/moonlight-web-go/internal/config"
	"github.com/ethan/moonlight-web-go/internal/httpapi"
	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/orchestrator"
	"github.com/ethan/moonlight-web-go/internal/session"
	"github.com/ethan/moonlight-web-go/internal/streamer"
	"github.com/ethan/moonlight-web-go/internal/transport/webrtcpeer"
	"github.com/ethan/moonlight-web-go/internal/transport/webtransportpeer"
	"github.com/ethan/moonlight-web-go/internal/video"
)

func main() {
	fs := flag.NewFlagSet("gateway", flag.ExitOnError)
	logFlags := logging.RegisterFlags(fs)
	envPath := fs.String("env", ".env", "path to the gateway's .env configuration file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Remote game streaming gateway\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logging.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logging.SetDefault(log)

	log.Info("starting moonlight-web-go gateway", "log_config", logFlags.String())

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	webrtcFactory, err := webrtcpeer.NewFactory(log.With("component", "webrtc"), webrtcpeer.Config{
		ICEServers:           cfg.WebRTC.ICEServers,
		EphemeralPortMin:     cfg.WebRTC.EphemeralPortMin,
		EphemeralPortMax:     cfg.WebRTC.EphemeralPortMax,
		NAT1To1IPs:           cfg.WebRTC.NAT1To1IPs,
		IncludeLoopback:      cfg.WebRTC.IncludeLoopback,
		SupportedVideoCodecs: []video.Codec{video.CodecH264, video.CodecH265},
	})
	if err != nil {
		log.Error("failed to build webrtc factory", "error", err)
		os.Exit(1)
	}

	var wtEndpoint *webtransportpeer.Endpoint
	if cfg.WebTransport.ListenAddr != "" {
		wtEndpoint, err = webtransportpeer.NewEndpoint(log.With("component", "webtransport"), webtransportpeer.Config{
			ListenAddr: cfg.WebTransport.ListenAddr,
			CertFile:   cfg.WebTransport.CertFile,
			KeyFile:    cfg.WebTransport.KeyFile,
			SelfSigned: cfg.WebTransport.SelfSigned,
		})
		if err != nil {
			log.Error("failed to build webtransport endpoint", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := wtEndpoint.Serve(ctx); err != nil && ctx.Err() == nil {
				log.Error("webtransport endpoint stopped unexpectedly", "error", err)
				cancel()
			}
		}()
	} else {
		log.Info("webtransport disabled, serving webrtc only")
	}

	sessions := session.NewManager(log.With("component", "session"))
	defer sessions.Close()

	supervisor := streamer.NewSupervisor(log.With("component", "streamer"), cfg.Streamer.BinaryPath,
		time.Duration(cfg.Streamer.CleanupEvery)*time.Second)
	defer supervisor.Close()

	resolver := orchestrator.NewStaticHostResolver(loadStaticHosts())

	orch := orchestrator.New(log.With("component", "orchestrator"), resolver, sessions, supervisor,
		webrtcFactory, wtEndpoint, cfg.WebRTC.ICEServers)

	api := httpapi.NewServer(log.With("component", "httpapi"), orch)

	log.Info("ready", "http_addr", cfg.HTTP.ListenAddr, "webtransport_addr", cfg.WebTransport.ListenAddr)
	if err := api.Start(ctx, cfg.HTTP.ListenAddr); err != nil && ctx.Err() == nil {
		log.Error("http server stopped unexpectedly", "error", err)
		os.Exit(1)
	}

	log.Info("graceful shutdown complete")
}

// loadStaticHosts is the placeholder host table the stub resolver serves
// from until a real pairing/discovery surface exists; empty until
// operators wire in hosts through whatever out-of-scope surface they run.
func loadStaticHosts() map[string]orchestrator.HostInfo {
	return map[string]orchestrator.HostInfo{}
}
