package logging

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel          string
	LogFormat         string
	LogFile           string
	DebugWebRTC       bool
	DebugWebTransport bool
	DebugSession      bool
	DebugStreamer     bool
	DebugSignaling    bool
	DebugAll          bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	fs.BoolVar(&f.DebugWebRTC, "debug-webrtc", false,
		"Enable WebRTC signaling/ICE debugging")
	fs.BoolVar(&f.DebugWebTransport, "debug-webtransport", false,
		"Enable QUIC/WebTransport session debugging")
	fs.BoolVar(&f.DebugSession, "debug-session", false,
		"Enable hybrid session/token lifecycle debugging")
	fs.BoolVar(&f.DebugStreamer, "debug-streamer", false,
		"Enable streamer child process debugging")
	fs.BoolVar(&f.DebugSignaling, "debug-signaling", false,
		"Enable signaling message debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		if f.DebugWebRTC {
			cfg.EnableCategory(DebugWebRTC)
			cfg.Level = LevelDebug
		}
		if f.DebugWebTransport {
			cfg.EnableCategory(DebugWebTransport)
			cfg.Level = LevelDebug
		}
		if f.DebugSession {
			cfg.EnableCategory(DebugSession)
			cfg.Level = LevelDebug
		}
		if f.DebugStreamer {
			cfg.EnableCategory(DebugStreamer)
			cfg.Level = LevelDebug
		}
		if f.DebugSignaling {
			cfg.EnableCategory(DebugSignaling)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./gateway

  Enable DEBUG level:
    ./gateway --log-level debug

  Log to file:
    ./gateway --log-file gateway.log

  JSON format for structured logging:
    ./gateway --log-format json -o gateway.json

  Debug WebRTC signaling only:
    ./gateway --debug-webrtc

  Debug the hybrid session manager only:
    ./gateway --debug-session

  Debug everything:
    ./gateway --debug-all -o debug.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugWebRTC {
			debugCategories = append(debugCategories, "webrtc")
		}
		if f.DebugWebTransport {
			debugCategories = append(debugCategories, "webtransport")
		}
		if f.DebugSession {
			debugCategories = append(debugCategories, "session")
		}
		if f.DebugStreamer {
			debugCategories = append(debugCategories, "streamer")
		}
		if f.DebugSignaling {
			debugCategories = append(debugCategories, "signaling")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
