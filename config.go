package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/libp2p/go-libp2p/core/peer"
)

// minInterval bounds the timeouts that drive periodic sweeps.
const minInterval = time.Second

// Config is read from the environment first; command-line flags win.
type Config struct {
	Nickname      string        `env:"LANCHAT_NICKNAME"`
	TCPPort       int           `env:"LANCHAT_TCP_PORT,default=0"`
	UDPPort       int           `env:"LANCHAT_UDP_PORT,default=0"`
	IdleTimeout   time.Duration `env:"LANCHAT_IDLE_TIMEOUT,default=60s"`
	PeerTTL       time.Duration `env:"LANCHAT_PEER_TTL,default=6m"`
	QueueCapacity int           `env:"LANCHAT_QUEUE_CAPACITY,default=100"`
	SinkBuffer    int           `env:"LANCHAT_SINK_BUFFER,default=256"`
	ConnLow       int           `env:"LANCHAT_CONN_LOW,default=32"`
	ConnHigh      int           `env:"LANCHAT_CONN_HIGH,default=96"`
	Discovery     bool          `env:"LANCHAT_DISCOVERY,default=true"`
	LogLevel      string        `env:"LOG_LEVEL,default=INFO"`
	LogFile       string        `env:"LANCHAT_LOG_FILE,default=lanchat.log"`

	Peers []peer.AddrInfo
	TUI   bool
	JSON  bool
	Chime bool
}

// stringList is a custom flag type for multiple peer addresses
type stringList []string

func (s *stringList) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// LoadConfig builds a Config from the process environment and args.
func LoadConfig(args []string) (Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return loadConfig(args, es)
}

func loadConfig(args []string, es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.Nickname == "" {
		cfg.Nickname = defaultNickname()
	}

	var peerAddrs stringList
	var noDiscovery bool
	fs := flag.NewFlagSet(pluginName, flag.ContinueOnError)
	fs.StringVar(&cfg.Nickname, "nick", cfg.Nickname, "nickname shown to other peers")
	fs.IntVar(&cfg.TCPPort, "tcp-port", cfg.TCPPort, "TCP listen port (0 = auto-assign)")
	fs.IntVar(&cfg.UDPPort, "udp-port", cfg.UDPPort, "QUIC listen port (0 = auto-assign)")
	fs.Var(&peerAddrs, "peer", "peer multiaddr to connect to, e.g. /ip4/10.0.0.2/tcp/4001/p2p/<id> (can be specified multiple times)")
	fs.BoolVar(&noDiscovery, "no-discovery", !cfg.Discovery, "disable mDNS discovery")
	fs.BoolVar(&cfg.TUI, "tui", false, "use the terminal UI")
	fs.BoolVar(&cfg.JSON, "json", false, "print received events as JSON lines (line mode only)")
	fs.BoolVar(&cfg.Chime, "chime", false, "play a tone when a message arrives")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "DEBUG, INFO, WARN or ERROR")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Discovery = !noDiscovery

	for _, s := range peerAddrs {
		pi, err := peer.AddrInfoFromString(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid peer address %q: %w", s, err)
		}
		cfg.Peers = append(cfg.Peers, *pi)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("LANCHAT_QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity))
	}
	if c.SinkBuffer <= 0 {
		errs = append(errs, fmt.Errorf("LANCHAT_SINK_BUFFER must be positive, got %d", c.SinkBuffer))
	}
	if c.IdleTimeout < minInterval {
		errs = append(errs, fmt.Errorf("LANCHAT_IDLE_TIMEOUT must be at least %s, got %s", minInterval, c.IdleTimeout))
	}
	if c.PeerTTL < minInterval {
		errs = append(errs, fmt.Errorf("LANCHAT_PEER_TTL must be at least %s, got %s", minInterval, c.PeerTTL))
	}
	if c.ConnLow <= 0 || c.ConnHigh <= c.ConnLow {
		errs = append(errs, fmt.Errorf("connection watermarks must satisfy 0 < low < high, got %d/%d", c.ConnLow, c.ConnHigh))
	}
	if c.TCPPort < 0 || c.TCPPort > 65535 || c.UDPPort < 0 || c.UDPPort > 65535 {
		errs = append(errs, fmt.Errorf("ports must be within 0-65535, got tcp=%d udp=%d", c.TCPPort, c.UDPPort))
	}
	return errors.Join(errs...)
}

func defaultNickname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "anonymous"
}
