package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"SharedBoard/internal/canvas"
	"SharedBoard/internal/config"
	"SharedBoard/internal/logging"
	boardnet "SharedBoard/internal/net"
	"SharedBoard/internal/participant"
	"SharedBoard/internal/ui"
)

const (
	defaultHost       = "localhost"
	defaultCreateName = "Genesis"
	defaultJoinName   = "Alien"
	browseTimeout     = 3 * time.Second
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  sharedboard serve [-config file] [-addr host:port] [-service name] [-no-mdns]
  sharedboard create [-config file] [-serve] [address port name]
  sharedboard join [-config file] [address port name]

address "auto" finds a coordinator on the local network.
`)
}

func main() {
	logging.ConfigureRuntime()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "create":
		err = runPeer(os.Args[2:], true)
	case "join":
		err = runPeer(os.Args[2:], false)
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("sharedboard failed")
		os.Exit(1)
	}
}

// coordinatorServer is a running coordinator with its HTTP listener and
// optional mDNS announcement.
type coordinatorServer struct {
	coord *boardnet.Coordinator
	http  *http.Server
	port  int
	errc  chan error
	stop  func()
}

func startCoordinator(cfg config.Config, advertise bool) (*coordinatorServer, error) {
	logger := logging.New("coordinator")
	coord := boardnet.NewCoordinator(boardnet.CoordinatorConfig{
		Service:         cfg.Coordinator.Service,
		QueueSize:       cfg.Coordinator.QueueSize,
		WriteTimeout:    cfg.Coordinator.WriteTimeout,
		ApprovalTimeout: cfg.Coordinator.ApprovalTimeout,
		SnapshotTimeout: cfg.Coordinator.SnapshotTimeout,
	}, logger)

	ln, err := net.Listen("tcp", cfg.Coordinator.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Coordinator.Addr, err)
	}
	s := &coordinatorServer{
		coord: coord,
		http:  &http.Server{Handler: coord.Handler(), ReadHeaderTimeout: 10 * time.Second},
		port:  ln.Addr().(*net.TCPAddr).Port,
		errc:  make(chan error, 1),
		stop:  func() {},
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Str("service", cfg.Coordinator.Service).Msg("coordinator listening")

	if advertise {
		mdnsServer, err := boardnet.Advertise(cfg.Coordinator.Service, s.port)
		if err != nil {
			logger.Warn().Err(err).Msg("mDNS advertisement unavailable")
		} else {
			s.stop = func() { _ = mdnsServer.Shutdown() }
			logger.Info().Str("type", boardnet.ServiceType).Int("port", s.port).Msg("advertising")
		}
	}
	return s, nil
}

func (s *coordinatorServer) shutdown() {
	s.stop()
	s.coord.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	addr := fs.String("addr", "", "listen address (host:port)")
	service := fs.String("service", "", "websocket service name")
	noMDNS := fs.Bool("no-mdns", false, "do not advertise on the local network")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.LogLevel)
	if *addr != "" {
		cfg.Coordinator.Addr = *addr
	}
	if *service != "" {
		cfg.Coordinator.Service = *service
	}
	if *noMDNS {
		cfg.Coordinator.Advertise = false
	}

	srv, err := startCoordinator(cfg, cfg.Coordinator.Advertise)
	if err != nil {
		return err
	}
	defer srv.shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-srv.coord.Done():
		log.Info().Msg("session ended, shutting down")
	case <-ctx.Done():
		log.Info().Msg("interrupted, shutting down")
	case err := <-srv.errc:
		return err
	}
	return nil
}

func runPeer(args []string, create bool) error {
	name := "join"
	if create {
		name = "create"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "TOML configuration file")
	serve := fs.Bool("serve", false, "run the coordinator inside this process (create only)")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.LogLevel)

	host, port, user, err := peerArgs(cfg, fs.Args(), create)
	if err != nil {
		return err
	}

	if *serve && create {
		cfg.Coordinator.Addr = fmt.Sprintf(":%d", port)
		srv, err := startCoordinator(cfg, cfg.Coordinator.Advertise)
		if err != nil {
			return err
		}
		defer srv.shutdown()
		host, port = defaultHost, srv.port
	}

	if host == "auto" {
		found, err := boardnet.Browse(browseTimeout)
		if err != nil {
			return err
		}
		host, port = found.Host, found.Port
	}
	endpoint := boardnet.Endpoint(host, port, cfg.Coordinator.Service)

	logger := logging.New("peer")
	p := participant.New(canvas.DefaultWidth, canvas.DefaultHeight, logger)
	clientCfg := boardnet.DefaultClientConfig()
	clientCfg.ConnectTimeout = cfg.Peer.ConnectTimeout

	join := func(p *participant.Participant) error {
		ctx := context.Background()
		client, err := boardnet.Dial(ctx, endpoint, p, clientCfg, logging.New("client"))
		if err != nil {
			return err
		}
		if err := p.Join(ctx, client, user, create); err != nil {
			client.Close()
			return err
		}
		return nil
	}
	logger.Info().Str("endpoint", endpoint).Str("name", user).Bool("create", create).Msg("starting whiteboard")
	ui.RunApp("SharedBoard - "+user, p, join, logger)
	return nil
}

// peerArgs resolves "address port name", falling back to the config file and
// then to the built-in defaults.
func peerArgs(cfg config.Config, args []string, create bool) (string, int, string, error) {
	host, portText, err := net.SplitHostPort(cfg.Peer.Addr)
	if err != nil {
		return "", 0, "", fmt.Errorf("peer.addr %q: %w", cfg.Peer.Addr, err)
	}
	user := cfg.Peer.Name
	if user == "" {
		user = defaultJoinName
		if create {
			user = defaultCreateName
		}
	}

	if len(args) > 3 {
		return "", 0, "", fmt.Errorf("expected at most 3 arguments, got %d", len(args))
	}
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		portText = args[1]
	}
	if len(args) > 2 {
		user = args[2]
	}

	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, "", fmt.Errorf("invalid port %q", portText)
	}
	if host == "" {
		host = defaultHost
	}
	return host, port, user, nil
}
