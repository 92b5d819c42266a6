package logging_test

import (
	"fmt"
	"os"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

// Example showing basic logger usage
func ExampleLogger_basic() {
	cfg := logging.NewConfig()
	cfg.Level = logging.LevelInfo
	cfg.Format = logging.FormatText

	log, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.Info("gateway started", "version", "1.0.0")
	log.Warn("deprecated codec requested", "format", "h265")
	log.Error("failed to bind quic listener", "error", "address in use")
}

// Example showing debug category usage
func ExampleLogger_categories() {
	cfg := logging.NewConfig()
	cfg.Level = logging.LevelDebug
	cfg.EnableCategory(logging.DebugWebRTC)
	cfg.EnableCategory(logging.DebugSession)

	log, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.DebugWebRTC("ice candidate gathered", "type", "host")
	log.DebugSession("token issued", "expires_in", "30s")
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In cmd/gateway/main.go:
	// fs := flag.NewFlagSet("gateway", flag.ExitOnError)
	// logFlags := logging.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logging.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/gateway/main.go for a complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logging.NewConfig()
	cfg.Level = logging.LevelInfo
	cfg.Format = logging.FormatJSON
	cfg.OutputFile = "gateway.json"

	log, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("gateway.json")

	log.Info("session claimed",
		"session_id", "abc123",
		"hybrid", true)
}
