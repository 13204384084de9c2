package topology

import (
	"strconv"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// ServerOptions carries the optional parts of a server topology. Zero values select
// the defaults.
type ServerOptions struct {
	ContainersPerReplica int32
	Image                string
	Memory               resource.Quantity
}

// BuildNamespace wraps a namespace name.
func BuildNamespace(name string) NamespaceSpec {
	return NamespaceSpec{Name: name}
}

// BuildServerTopology lays out replicas and containers for a strategy. It fails when
// either count is not positive or when the strategy cannot reconcile the
// port and container counts.
func BuildServerTopology(strategy Strategy, replicas, ports int32, opts ServerOptions) (ServerTopology, error) {
	p := &problems{}
	if !strategy.Valid() {
		p.addf("strategy: unknown strategy %q (must be one of %s)", strategy, strategyNames())
	}
	if replicas <= 0 {
		p.addf("replicas: must be positive, got %d", replicas)
	}
	if ports <= 0 {
		p.addf("ports: must be positive, got %d", ports)
	}
	var containers int32
	if strategy.Valid() {
		containers = containerCount(strategy, ports, opts.ContainersPerReplica, p)
	}
	if err := p.err(); err != nil {
		return ServerTopology{}, err
	}

	image := opts.Image
	if image == "" {
		image = DefaultServerImage
	}
	memory := opts.Memory
	if memory.IsZero() {
		memory = resource.MustParse("100Mi")
	}

	return ServerTopology{
		Name:       ServerName,
		Strategy:   strategy,
		Replicas:   replicas,
		Image:      image,
		Containers: layouts[strategy](ports, containers),
		Footprint:  Footprint{Request: memory.DeepCopy(), Limit: memory.DeepCopy()},
	}, nil
}

// BuildServerService derives the headless service addressing every binding of the
// topology. Bindings are deduplicated by name, first occurrence wins.
func BuildServerService(t ServerTopology) ServiceSpec {
	seen := make(map[string]bool)
	var ports []PortBinding
	for _, b := range t.Bindings() {
		if seen[b.Name] {
			continue
		}
		seen[b.Name] = true
		ports = append(ports, b)
	}
	return ServiceSpec{
		Name:       t.Name,
		Selector:   map[string]string{AppLabel: t.Name},
		Visibility: VisibilityHeadless,
		Ports:      ports,
	}
}

// BuildClientWorkloads returns one workload per concurrency level, in order. A level
// that repeats keeps its own workload; the k-th repeat is named client-<N>-<k>.
func BuildClientWorkloads(levels []int, hint AddressHint, obs *Observability, policy MemoryPolicy) ([]ClientWorkload, error) {
	p := &problems{}
	if len(levels) == 0 {
		p.addf("concurrencyLevels: at least one concurrency level is required")
	}
	for i, level := range levels {
		if level <= 0 {
			p.addf("concurrencyLevels[%d]: must be positive, got %d", i, level)
		} else if level > MaxConcurrency {
			p.addf("concurrencyLevels[%d]: %d exceeds the maximum of %d", i, level, MaxConcurrency)
		}
	}
	if policy == nil {
		p.addf("client memory policy is required")
	}
	if err := p.err(); err != nil {
		return nil, err
	}

	seen := make(map[int]int, len(levels))
	workloads := make([]ClientWorkload, 0, len(levels))
	for _, level := range levels {
		name := ClientName + "-" + strconv.Itoa(level)
		if n := seen[level]; n > 0 {
			name += "-" + strconv.Itoa(n)
		}
		seen[level]++

		var endpoint *Observability
		if obs != nil {
			endpoint = &Observability{Name: obs.Name, Port: obs.Port}
		}
		workloads = append(workloads, ClientWorkload{
			Name:          name,
			Concurrency:   level,
			Addrs:         append([]string(nil), hint.Addrs...),
			Observability: endpoint,
			Footprint:     policy.Footprint(level),
		})
	}
	return workloads, nil
}

// BuildClientService publishes the clients' observability port outside the cluster.
// It returns nil when the strategy keeps client observability private.
func BuildClientService(strategy Strategy, selector map[string]string, obs Observability, visibility Visibility) *ServiceSpec {
	if !strategy.ExposesObservability() {
		return nil
	}
	sel := make(map[string]string, len(selector))
	for k, v := range selector {
		sel[k] = v
	}
	return &ServiceSpec{
		Name:       ClientName,
		Selector:   sel,
		Visibility: visibility,
		Ports: []PortBinding{{
			Name:   obs.Name,
			Port:   obs.Port,
			Target: intstr.FromString(obs.Name),
		}},
	}
}

// Build validates cfg and expands it into a plan. Nothing is built unless the whole
// configuration is valid.
func Build(cfg ScaleConfiguration) (Plan, error) {
	if err := cfg.Validate(); err != nil {
		return Plan{}, err
	}

	server, err := BuildServerTopology(cfg.Strategy, cfg.Replicas, cfg.Ports, ServerOptions{
		ContainersPerReplica: cfg.ContainersPerReplica,
		Image:                cfg.Server.Image,
		Memory:               cfg.Server.Memory,
	})
	if err != nil {
		return Plan{}, err
	}
	service := BuildServerService(server)
	if err := ValidateTopology(server, service); err != nil {
		return Plan{}, err
	}

	hint, err := ResolveAddresses(server, service, cfg.Targets)
	if err != nil {
		return Plan{}, err
	}

	var obs *Observability
	if cfg.Strategy.ExposesObservability() {
		obs = &Observability{Name: ObservabilityPortName, Port: cfg.Client.ObservabilityPort}
	}
	workloads, err := BuildClientWorkloads(cfg.ConcurrencyLevels, hint, obs, MemoryPolicyFor(cfg))
	if err != nil {
		return Plan{}, err
	}

	var clientService *ServiceSpec
	if obs != nil {
		clientService = BuildClientService(cfg.Strategy, map[string]string{AppLabel: ClientName}, *obs, cfg.Client.ServiceType)
	}

	return Plan{
		Namespace:     BuildNamespace(cfg.Namespace),
		Server:        server,
		ServerService: service,
		ClientImage:   cfg.Client.Image,
		Workloads:     workloads,
		ClientService: clientService,
	}, nil
}
