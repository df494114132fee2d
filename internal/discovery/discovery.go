package discovery

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"

	"github.com/mccartykim/wonderback/internal/infrastructure/config"
)

// serviceType is the mDNS service the Android agent browses for.
const serviceType = "_wonderback._tcp"

const serviceDomain = "local."

// Logger is the logging interface used by the service.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Service advertises the server over mDNS so agents on the same network
// find it without manual configuration.
type Service struct {
	server *zeroconf.Server
	logger Logger
}

// Register announces the server on the local network. Registration failure
// is reported to the caller but is not fatal to the server; agents can
// still connect by address.
func Register(cfg config.DiscoveryConfig, port int, version string, logger Logger) (*Service, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "wonderback"
	}

	instance := cfg.InstanceName
	if instance == "" {
		instance = "Wonderback Server"
	}

	txt := []string{
		"version=" + version,
		"hostname=" + hostname,
	}

	server, err := zeroconf.Register(instance, serviceType, serviceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: registering mDNS service: %w", err)
	}

	logger.Info("mDNS service registered",
		"instance", instance,
		"type", serviceType,
		"port", port,
	)

	return &Service{server: server, logger: logger}, nil
}

// Close withdraws the mDNS announcement.
func (s *Service) Close() {
	if s == nil || s.server == nil {
		return
	}
	s.server.Shutdown()
	s.logger.Info("mDNS service unregistered")
}
