package topology

import (
	"math"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	DefaultNamespace   = "ssh-benchmark"
	DefaultServerImage = "ghcr.io/pbar1/ssh-benchmark-server:latest"
	DefaultClientImage = "ghcr.io/pbar1/ssh-benchmark-client:latest"
)

// MaxConcurrency is the largest concurrency level a single client job may run.
const MaxConcurrency = 1 << 20

// DefaultConcurrencyLevels are the concurrency levels benchmarked when none are given.
var DefaultConcurrencyLevels = []int{1, 10, 100, 1000, 10000}

// ScaleConfiguration is the complete input of a generation run.
type ScaleConfiguration struct {
	Namespace            string         `mapstructure:"namespace" json:"namespace"`
	Strategy             Strategy       `mapstructure:"strategy" json:"strategy"`
	Replicas             int32          `mapstructure:"replicas" json:"replicas"`
	Ports                int32          `mapstructure:"ports" json:"ports"`
	ContainersPerReplica int32          `mapstructure:"containersPerReplica" json:"containersPerReplica"`
	ConcurrencyLevels    []int          `mapstructure:"concurrencyLevels" json:"concurrencyLevels"`
	Targets              TargetSelector `mapstructure:"targets" json:"targets"`
	Server               ServerSettings `mapstructure:"server" json:"server"`
	Client               ClientSettings `mapstructure:"client" json:"client"`
}

// TargetSelector picks the replica ordinals and service ports clients dial.
// An empty list selects everything.
type TargetSelector struct {
	Ordinals []int32 `mapstructure:"ordinals" json:"ordinals,omitempty"`
	Ports    []int32 `mapstructure:"ports" json:"ports,omitempty"`
}

// ServerSettings configures the server containers.
type ServerSettings struct {
	Image  string            `mapstructure:"image" json:"image"`
	Memory resource.Quantity `mapstructure:"memory" json:"memory"`
}

// ClientSettings configures the client jobs. Memory applies to fixed-footprint
// strategies, MemoryBase/MemoryPerConnection/LimitRatio to concurrency-scaled ones.
type ClientSettings struct {
	Image               string            `mapstructure:"image" json:"image"`
	Memory              resource.Quantity `mapstructure:"memory" json:"memory"`
	MemoryBase          resource.Quantity `mapstructure:"memoryBase" json:"memoryBase"`
	MemoryPerConnection resource.Quantity `mapstructure:"memoryPerConnection" json:"memoryPerConnection"`
	LimitRatio          int64             `mapstructure:"limitRatio" json:"limitRatio"`
	ObservabilityPort   int32             `mapstructure:"observabilityPort" json:"observabilityPort"`
	ServiceType         Visibility        `mapstructure:"serviceType" json:"serviceType"`
}

// DefaultScaleConfiguration returns the reference parameters of a strategy. An unknown
// strategy falls back to SingleContainer.
func DefaultScaleConfiguration(s Strategy) ScaleConfiguration {
	if !s.Valid() {
		s = SingleContainer
	}
	cfg := ScaleConfiguration{
		Namespace:         DefaultNamespace,
		Strategy:          s,
		ConcurrencyLevels: append([]int(nil), DefaultConcurrencyLevels...),
		Server: ServerSettings{
			Image:  DefaultServerImage,
			Memory: resource.MustParse("100Mi"),
		},
		Client: ClientSettings{
			Image:               DefaultClientImage,
			Memory:              resource.MustParse("128Mi"),
			MemoryBase:          resource.MustParse("64Mi"),
			MemoryPerConnection: resource.MustParse("64Ki"),
			LimitRatio:          2,
			ObservabilityPort:   DefaultObservabilityPort,
			ServiceType:         VisibilityLoadBalancer,
		},
	}

	switch s {
	case SingleContainer:
		cfg.Replicas = 10
		cfg.Ports = 1000
		cfg.ContainersPerReplica = 1
		// Matches the reference benchmark: every client dials server-4 on port 234.
		cfg.Targets = TargetSelector{Ordinals: []int32{4}, Ports: []int32{234}}
	case MultiContainer:
		cfg.Replicas = 1
		cfg.Ports = 10
		cfg.ContainersPerReplica = 10
	case Hybrid:
		cfg.Replicas = 2
		cfg.Ports = 100
		cfg.ContainersPerReplica = 4
	}
	return cfg
}

// FitTargets drops target selections that came from the strategy defaults but no longer
// fit the configured replicas or ports, so the defaults of a strategy never invalidate a
// resized configuration. Selections marked explicit are left for Validate and Build to
// reject. A dropped selection selects every ordinal or port.
func (c *ScaleConfiguration) FitTargets(explicitOrdinals, explicitPorts bool) {
	if !explicitOrdinals {
		for _, o := range c.Targets.Ordinals {
			if o < 0 || o >= c.Replicas {
				c.Targets.Ordinals = nil
				break
			}
		}
	}
	if !explicitPorts && len(c.Targets.Ports) > 0 && !c.advertises(c.Targets.Ports) {
		c.Targets.Ports = nil
	}
}

// advertises reports whether the service built from c carries every port in ports. A
// configuration that cannot be built is treated as advertising them; Validate reports
// the underlying problem instead.
func (c ScaleConfiguration) advertises(ports []int32) bool {
	t, err := BuildServerTopology(c.Strategy, c.Replicas, c.Ports, ServerOptions{ContainersPerReplica: c.ContainersPerReplica})
	if err != nil {
		return true
	}
	advertised := make(map[int32]bool)
	for _, sp := range BuildServerService(t).Ports {
		advertised[sp.Port] = true
	}
	for _, port := range ports {
		if !advertised[port] {
			return false
		}
	}
	return true
}

// Validate reports every problem in the configuration at once. Checks that need the
// built topology (target ports) are done by Build.
func (c ScaleConfiguration) Validate() error {
	p := &problems{}

	if c.Namespace == "" {
		p.addf("namespace: must not be empty")
	} else if msgs := validation.IsDNS1123Label(c.Namespace); len(msgs) > 0 {
		p.addf("namespace: %q is not a valid name: %s", c.Namespace, msgs[0])
	}

	if !c.Strategy.Valid() {
		p.addf("strategy: unknown strategy %q (must be one of %s)", c.Strategy, strategyNames())
	}
	if c.Replicas <= 0 {
		p.addf("replicas: must be positive, got %d", c.Replicas)
	}
	if c.Ports <= 0 {
		p.addf("ports: must be positive, got %d", c.Ports)
	}
	if c.Strategy.Valid() {
		containerCount(c.Strategy, c.Ports, c.ContainersPerReplica, p)
	}

	if len(c.ConcurrencyLevels) == 0 {
		p.addf("concurrencyLevels: at least one concurrency level is required")
	}
	for i, level := range c.ConcurrencyLevels {
		if level <= 0 {
			p.addf("concurrencyLevels[%d]: must be positive, got %d", i, level)
		} else if level > MaxConcurrency {
			p.addf("concurrencyLevels[%d]: %d exceeds the maximum of %d", i, level, MaxConcurrency)
		}
	}

	for i, ordinal := range c.Targets.Ordinals {
		if ordinal < 0 || (c.Replicas > 0 && ordinal >= c.Replicas) {
			p.addf("targets.ordinals[%d]: ordinal %d out of range for %d replicas", i, ordinal, c.Replicas)
		}
	}

	if c.Server.Image == "" {
		p.addf("server.image: must not be empty")
	}
	if c.Server.Memory.Sign() <= 0 {
		p.addf("server.memory: must be positive")
	}

	if c.Client.Image == "" {
		p.addf("client.image: must not be empty")
	}
	if c.Strategy.ScalesClientMemory() {
		if c.Client.MemoryBase.Sign() <= 0 {
			p.addf("client.memoryBase: must be positive")
		}
		if c.Client.MemoryPerConnection.Sign() < 0 {
			p.addf("client.memoryPerConnection: must not be negative")
		}
		if c.Client.LimitRatio < 1 {
			p.addf("client.limitRatio: must be at least 1, got %d", c.Client.LimitRatio)
		}
		if c.Client.MemoryBase.Sign() > 0 && c.Client.MemoryPerConnection.Sign() >= 0 && c.Client.LimitRatio >= 1 {
			policy := MemoryPolicyFor(c)
			for i, level := range c.ConcurrencyLevels {
				if level <= 0 || level > MaxConcurrency {
					continue
				}
				if fp := policy.Footprint(level); fp.Limit.Value() == math.MaxInt64 {
					p.addf("concurrencyLevels[%d]: client memory for concurrency %d overflows", i, level)
				}
			}
		}
	} else if c.Client.Memory.Sign() <= 0 {
		p.addf("client.memory: must be positive")
	}
	if c.Strategy.ExposesObservability() {
		if c.Client.ObservabilityPort <= 0 || c.Client.ObservabilityPort > MaxPort {
			p.addf("client.observabilityPort: %d is not a valid port", c.Client.ObservabilityPort)
		}
		if c.Client.ServiceType != VisibilityNodePort && c.Client.ServiceType != VisibilityLoadBalancer {
			p.addf("client.serviceType: %q must be %s or %s", c.Client.ServiceType, VisibilityNodePort, VisibilityLoadBalancer)
		}
	}

	return p.err()
}
