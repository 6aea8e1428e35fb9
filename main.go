package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gologme/log"
	flag "github.com/spf13/pflag"
)

var version = "0.3.1"

// Session defaults, applied when the positional values are omitted or
// non-positive.
const (
	defaultSeconds = 10
	defaultBufKB   = 16
)

// Roles selected by the first positional argument.
const (
	roleServer = "server"
	roleClient = "client"
)

// Config holds all command-line configuration.
type Config struct {
	Role string

	// Server
	Port int

	// Client
	Host    string
	Seconds int
	BufKB   int
	Rate    int64 // bytes per second (0 = unlimited)

	// Misc
	Debug   bool
	Help    bool
	Version bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Version {
		fmt.Printf("iperf %s\n", version)
		os.Exit(0)
	}

	if cfg.Role == "" {
		fmt.Fprintln(os.Stderr, "iperf: minimal single-connection TCP throughput tester")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "error: no mode specified")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: iperf server <port>")
		fmt.Fprintln(os.Stderr, "       iperf client <host> <port> [seconds] [buffer_kb]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Quick examples:")
		fmt.Fprintln(os.Stderr, "  iperf server 5201               # receive on port 5201")
		fmt.Fprintln(os.Stderr, "  iperf client 10.0.0.2 5201      # send for 10s with a 16KB buffer")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run 'iperf --help' for full options.")
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)

	var exitCode int
	switch cfg.Role {
	case roleServer:
		exitCode = runServer(cfg, os.Stdout, logger)
	case roleClient:
		exitCode = runClient(cfg, os.Stdout, logger)
	}
	os.Exit(exitCode)
}

func parseFlags(args []string) (*Config, error) {
	cfg := &Config{
		Seconds: defaultSeconds,
		BufKB:   defaultBufKB,
	}

	fs := flag.NewFlagSet("iperf", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.SortFlags = false // Preserve definition order in help

	rateSpec := fs.StringP("rate", "r", "", "Cap the client send rate (e.g., 500kbit, 100mbit, 10MB)")
	fs.BoolVar(&cfg.Debug, "debug", false, "Log retry and drain detail to stderr")
	fs.BoolVarP(&cfg.Help, "help", "h", false, "Show help")
	fs.BoolVarP(&cfg.Version, "version", "v", false, "Show version")

	// Custom usage
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "iperf - minimal single-connection TCP throughput tester")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Moves bytes over one TCP stream in one direction and reports the")
		fmt.Fprintln(os.Stderr, "per-second and total rates on both ends.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: iperf server <port>")
		fmt.Fprintln(os.Stderr, "       iperf client <host> <port> [seconds] [buffer_kb]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  iperf server 5201")
		fmt.Fprintln(os.Stderr, "  iperf client 192.0.2.10 5201")
		fmt.Fprintln(os.Stderr, "  iperf client host.example 5201 30 64")
		fmt.Fprintln(os.Stderr, "  iperf client --rate 100mbit host.example 5201")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Rate formats: 100, 100bps, 56kbit, 56k, 1mbit, 100KB")
		fmt.Fprintln(os.Stderr, "  k=1000 (SI units), not 1024")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Help {
		fs.Usage()
		return cfg, flag.ErrHelp
	}

	if *rateSpec != "" {
		r, err := parseBandwidth(*rateSpec)
		if err != nil {
			return nil, fmt.Errorf("invalid --rate: %w", err)
		}
		cfg.Rate = r
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return cfg, nil
	}

	switch rest[0] {
	case "server", "s":
		cfg.Role = roleServer
	case "client", "c":
		cfg.Role = roleClient
	default:
		return nil, fmt.Errorf("unknown mode: %s (use \"server\" or \"client\")", rest[0])
	}

	if cfg.Role == roleServer {
		if len(rest) < 2 {
			return nil, fmt.Errorf("server usage: iperf server <port>")
		}
		port, err := parsePort(rest[1])
		if err != nil {
			return nil, err
		}
		cfg.Port = port
		return cfg, nil
	}

	// Client positionals: host and port, then optional session values
	if len(rest) < 3 {
		return nil, fmt.Errorf("client usage: iperf client <host> <port> [seconds] [buffer_kb]")
	}
	cfg.Host = rest[1]
	port, err := parsePort(rest[2])
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	for _, p := range []struct {
		idx  int
		name string
		dst  *int
		def  int
	}{
		{3, "seconds", &cfg.Seconds, defaultSeconds},
		{4, "buffer_kb", &cfg.BufKB, defaultBufKB},
	} {
		if len(rest) <= p.idx {
			continue
		}
		v, err := strconv.Atoi(rest[p.idx])
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %s", p.name, rest[p.idx])
		}
		if v <= 0 {
			v = p.def
		}
		*p.dst = v
	}

	return cfg, nil
}

// parsePort parses a strict decimal TCP port in 1..65535.
func parsePort(s string) (int, error) {
	p, err := strconv.ParseUint(s, 10, 64)
	if err != nil || p == 0 || p > 65535 {
		return 0, fmt.Errorf("bad port: %s", s)
	}
	return int(p), nil
}

// parseBandwidth parses rate strings like "56kbit", "1mbit", "100KB"
// Returns bytes per second. Uses SI units (k=1000).
func parseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}

	// Regex to parse: number + optional unit
	re := regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z/]*)$`)
	matches := re.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid rate format: %s", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	unit := matches[2]
	var multiplier float64 = 1
	isBytes := false

	switch unit {
	case "", "bps", "bit", "bits":
		multiplier = 1
	case "k", "kbit", "kbps":
		multiplier = 1000
	case "m", "mbit", "mbps":
		multiplier = 1000000
	case "g", "gbit", "gbps":
		multiplier = 1000000000
	case "b", "byte", "bytes":
		multiplier = 1
		isBytes = true
	case "kb", "kb/s":
		multiplier = 1000
		isBytes = true
	case "mb", "mb/s":
		multiplier = 1000000
		isBytes = true
	case "gb", "gb/s":
		multiplier = 1000000000
		isBytes = true
	default:
		return 0, fmt.Errorf("unknown rate unit: %s", unit)
	}

	bits := value * multiplier
	if isBytes {
		return int64(bits), nil // Already in bytes
	}
	return int64(bits / 8), nil // Convert bits to bytes
}

// newLogger builds the stderr logger. Levels accumulate, so --debug keeps
// error, warn, and info enabled as well.
func newLogger(debug bool) *log.Logger {
	logger := log.New(os.Stderr, "", 0)
	for _, level := range []string{"error", "warn", "info"} {
		logger.EnableLevel(level)
	}
	if debug {
		logger.EnableLevel("debug")
	}
	return logger
}
