package topology

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// Strategy is a port-sharding policy: how N logical service ports are spread across
// replicas and containers.
type Strategy string

const (
	// SingleContainer runs one container per replica owning every port; the service
	// routes ports 1..N to that container's named ssh port.
	SingleContainer Strategy = "single-container"
	// MultiContainer runs one container per port, each on its own uniquely named port.
	MultiContainer Strategy = "multi-container"
	// Hybrid runs a fixed number of containers per replica and splits the ports between
	// them in contiguous slices.
	Hybrid Strategy = "hybrid"
)

// Strategies lists the supported strategies in a stable order.
func Strategies() []Strategy {
	return []Strategy{SingleContainer, MultiContainer, Hybrid}
}

// ParseStrategy accepts a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	candidate := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q (must be one of %s)", ErrInvalidConfig, s, strategyNames())
}

// Valid reports whether s is a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case SingleContainer, MultiContainer, Hybrid:
		return true
	}
	return false
}

func (s Strategy) String() string {
	return string(s)
}

// ExposesObservability reports whether clients of this strategy publish their console
// endpoint through a client-facing service.
func (s Strategy) ExposesObservability() bool {
	return s == MultiContainer
}

// ScalesClientMemory reports whether client memory grows with concurrency.
func (s Strategy) ScalesClientMemory() bool {
	return s == MultiContainer
}

func strategyNames() string {
	names := make([]string, 0, 3)
	for _, s := range Strategies() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// layout produces the per-replica container list for already validated counts.
type layout func(ports, containers int32) []ServerContainer

var layouts = map[Strategy]layout{
	SingleContainer: singleContainerLayout,
	MultiContainer:  multiContainerLayout,
	Hybrid:          hybridLayout,
}

func singleContainerLayout(ports, _ int32) []ServerContainer {
	bindings := make([]PortBinding, 0, ports)
	for i := int32(1); i <= ports; i++ {
		bindings = append(bindings, PortBinding{
			Name:   "port-" + strconv.Itoa(int(i)),
			Port:   i,
			Target: intstr.FromString(SSHPortName),
		})
	}
	return []ServerContainer{{
		Name:     ServerName,
		Port:     ContainerPort{Name: SSHPortName, Number: SSHPort},
		Bindings: bindings,
	}}
}

func multiContainerLayout(ports, _ int32) []ServerContainer {
	containers := make([]ServerContainer, 0, ports)
	for i := int32(0); i < ports; i++ {
		name := indexedName(SSHPortName, i)
		containers = append(containers, ServerContainer{
			Name: indexedName(ServerName, i),
			Port: ContainerPort{Name: name, Number: BasePort + i},
			Bindings: []PortBinding{{
				Name:   name,
				Port:   BasePort + i,
				Target: intstr.FromString(name),
			}},
		})
	}
	return containers
}

func hybridLayout(ports, containers int32) []ServerContainer {
	perContainer := ports / containers
	out := make([]ServerContainer, 0, containers)
	for c := int32(0); c < containers; c++ {
		portName := indexedName(SSHPortName, c)
		bindings := make([]PortBinding, 0, perContainer)
		for k := int32(1); k <= perContainer; k++ {
			i := c*perContainer + k
			bindings = append(bindings, PortBinding{
				Name:   "port-" + strconv.Itoa(int(i)),
				Port:   i,
				Target: intstr.FromString(portName),
			})
		}
		out = append(out, ServerContainer{
			Name:     indexedName(ServerName, c),
			Port:     ContainerPort{Name: portName, Number: BasePort + c},
			Bindings: bindings,
		})
	}
	return out
}

// containerCount resolves the number of containers per replica a strategy will
// materialize, recording a problem when the requested counts cannot agree.
func containerCount(s Strategy, ports, containers int32, p *problems) int32 {
	switch s {
	case SingleContainer:
		if containers != 0 && containers != 1 {
			p.addf("containersPerReplica: %s runs exactly one container per replica, got %d", s, containers)
		}
		if ports > MaxPort {
			p.addf("ports: %d service ports exceed the highest port %d", ports, MaxPort)
		}
		return 1
	case MultiContainer:
		if containers != 0 && containers != ports {
			p.addf("containersPerReplica: %s runs one container per port, got %d containers for %d ports", s, containers, ports)
		}
		if ports > 0 && BasePort+ports-1 > MaxPort {
			p.addf("ports: %d container ports starting at %d exceed the highest port %d", ports, BasePort, MaxPort)
		}
		return ports
	case Hybrid:
		switch {
		case containers <= 0:
			p.addf("containersPerReplica: %s requires a positive container count, got %d", s, containers)
		case ports > 0 && containers > ports:
			p.addf("containersPerReplica: %d containers cannot share %d ports", containers, ports)
		case ports > 0 && ports%containers != 0:
			p.addf("containersPerReplica: %d ports do not divide evenly across %d containers", ports, containers)
		}
		if containers > 0 && BasePort+containers-1 > MaxPort {
			p.addf("containersPerReplica: %d container ports starting at %d exceed the highest port %d", containers, BasePort, MaxPort)
		}
		if ports > MaxPort {
			p.addf("ports: %d service ports exceed the highest port %d", ports, MaxPort)
		}
		return containers
	}
	return 0
}

func indexedName(prefix string, i int32) string {
	return prefix + "-" + strconv.Itoa(int(i))
}
