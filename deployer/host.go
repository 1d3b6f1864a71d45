package deployer

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/maxpert/nodedeployer/manifest"
	"github.com/rs/zerolog/log"
)

// HostService controls the service that hosts the cluster runtime.
type HostService interface {
	Install(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Uninstall(ctx context.Context, name string) error
}

// Firewall opens and closes the ports used by a node.
type Firewall interface {
	Open(ctx context.Context, node string, ports []int) error
	Close(ctx context.Context, node string) error
}

// MachineIdentity describes the local machine for node selection.
type MachineIdentity interface {
	Hostname() (string, error)
	Addresses() ([]string, error)
}

// LoggingHost records host service actions without touching the OS.
type LoggingHost struct{}

func (LoggingHost) Install(_ context.Context, name string) error {
	log.Info().Str("service", name).Msg("Installing host service")
	return nil
}

func (LoggingHost) Start(_ context.Context, name string) error {
	log.Info().Str("service", name).Msg("Starting host service")
	return nil
}

func (LoggingHost) Stop(_ context.Context, name string) error {
	log.Info().Str("service", name).Msg("Stopping host service")
	return nil
}

func (LoggingHost) Restart(_ context.Context, name string) error {
	log.Info().Str("service", name).Msg("Restarting host service")
	return nil
}

func (LoggingHost) Uninstall(_ context.Context, name string) error {
	log.Info().Str("service", name).Msg("Uninstalling host service")
	return nil
}

// LoggingFirewall records firewall changes without touching the OS.
type LoggingFirewall struct{}

func (LoggingFirewall) Open(_ context.Context, node string, ports []int) error {
	log.Info().Str("node", node).Ints("ports", ports).Msg("Opening firewall ports")
	return nil
}

func (LoggingFirewall) Close(_ context.Context, node string) error {
	log.Info().Str("node", node).Msg("Closing firewall ports")
	return nil
}

// LocalMachine reads identity from the running host.
type LocalMachine struct{}

func (LocalMachine) Hostname() (string, error) {
	return os.Hostname()
}

func (LocalMachine) Addresses() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ip, _, err := net.ParseCIDR(a.String())
		if err != nil {
			continue
		}
		out = append(out, ip.String())
	}
	return out, nil
}

// EndpointPorts returns every concrete port of the endpoint set, ranges
// expanded to their bounds only.
func EndpointPorts(ep *manifest.Endpoints) []int {
	if ep == nil {
		return nil
	}
	var ports []int
	add := func(e *manifest.Endpoint) {
		if e == nil {
			return
		}
		if p, err := strconv.Atoi(strings.TrimSpace(e.Port)); err == nil && p > 0 {
			ports = append(ports, p)
		}
	}
	for _, e := range []*manifest.Endpoint{
		ep.ClientConnectionEndpoint,
		ep.ClusterConnectionEndpoint,
		ep.LeaseDriverEndpoint,
		ep.ServiceConnectionEndpoint,
		ep.HttpGatewayEndpoint,
		ep.HttpApplicationGatewayEndpoint,
		ep.ClusterManagerReplicatorEndpoint,
		ep.RepairManagerReplicatorEndpoint,
		ep.NamingReplicatorEndpoint,
		ep.FailoverManagerReplicatorEndpoint,
		ep.ImageStoreServiceReplicatorEndpoint,
		ep.UpgradeServiceReplicatorEndpoint,
		ep.DefaultReplicatorEndpoint,
	} {
		add(e)
	}
	for _, r := range []*manifest.PortRange{ep.ApplicationEndpoints, ep.EphemeralEndpoints} {
		if r != nil && r.StartPort > 0 && r.EndPort >= r.StartPort {
			ports = append(ports, r.StartPort, r.EndPort)
		}
	}
	return ports
}
