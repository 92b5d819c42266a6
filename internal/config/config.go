package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds gateway-wide configuration loaded from a .env file.
// Authentication, host pairing, and TLS certificate issuance are handled
// by external collaborators; this config only covers what the transport
// plane, session manager, and streamer supervisor need to start.
type Config struct {
	HTTP      HTTPConfig
	WebRTC    WebRTCConfig
	WebTransport WebTransportConfig
	Streamer  StreamerConfig
}

// HTTPConfig configures the primary/input signaling HTTP listener.
type HTTPConfig struct {
	ListenAddr string
}

// WebRTCConfig configures the pion PeerConnection factory shared by every session.
type WebRTCConfig struct {
	ICEServers       []string
	EphemeralPortMin uint16
	EphemeralPortMax uint16
	NAT1To1IPs       []string
	IncludeLoopback  bool
}

// WebTransportConfig configures the QUIC/WebTransport endpoint.
type WebTransportConfig struct {
	ListenAddr  string
	CertFile    string
	KeyFile     string
	SelfSigned  bool
}

// StreamerConfig configures how the supervisor locates and sweeps the
// per-session streamer child process.
type StreamerConfig struct {
	BinaryPath   string
	CleanupEvery int // seconds between sweeps of dead registry entries
}

// Load reads configuration from a .env-style file.
func Load(envPath string) (*Config, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	cfg := defaultConfig()
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}

		applyKey(cfg, key, decodedValue)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
		},
		WebRTC: WebRTCConfig{
			ICEServers: []string{"stun:stun.l.google.com:19302"},
		},
		WebTransport: WebTransportConfig{
			ListenAddr: ":8443",
			SelfSigned: true,
		},
		Streamer: StreamerConfig{
			BinaryPath:   "./streamer",
			CleanupEvery: 60,
		},
	}
}

func applyKey(cfg *Config, key, value string) {
	switch key {
	case "http_listen_addr":
		cfg.HTTP.ListenAddr = value
	case "ice_servers":
		cfg.WebRTC.ICEServers = splitCommaList(value)
	case "ephemeral_port_min":
		if v, err := strconv.ParseUint(value, 10, 16); err == nil {
			cfg.WebRTC.EphemeralPortMin = uint16(v)
		}
	case "ephemeral_port_max":
		if v, err := strconv.ParseUint(value, 10, 16); err == nil {
			cfg.WebRTC.EphemeralPortMax = uint16(v)
		}
	case "nat_1to1_ips":
		cfg.WebRTC.NAT1To1IPs = splitCommaList(value)
	case "include_loopback":
		cfg.WebRTC.IncludeLoopback = value == "true" || value == "1"
	case "webtransport_listen_addr":
		cfg.WebTransport.ListenAddr = value
	case "webtransport_cert_file":
		cfg.WebTransport.CertFile = value
	case "webtransport_key_file":
		cfg.WebTransport.KeyFile = value
	case "webtransport_self_signed":
		cfg.WebTransport.SelfSigned = value == "true" || value == "1"
	case "streamer_binary_path":
		cfg.Streamer.BinaryPath = value
	case "streamer_cleanup_every":
		if v, err := strconv.Atoi(value); err == nil {
			cfg.Streamer.CleanupEvery = v
		}
	}
}

func splitCommaList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that configuration is internally consistent.
func (c *Config) Validate() error {
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("missing http_listen_addr")
	}
	if c.WebTransport.ListenAddr != "" && !c.WebTransport.SelfSigned && (c.WebTransport.CertFile == "" || c.WebTransport.KeyFile == "") {
		return fmt.Errorf("webtransport_self_signed is false but cert/key file not set")
	}
	if c.Streamer.BinaryPath == "" {
		return fmt.Errorf("missing streamer_binary_path")
	}
	if c.WebRTC.EphemeralPortMin != 0 && c.WebRTC.EphemeralPortMax != 0 &&
		c.WebRTC.EphemeralPortMin > c.WebRTC.EphemeralPortMax {
		return fmt.Errorf("ephemeral_port_min must be <= ephemeral_port_max")
	}
	return nil
}
