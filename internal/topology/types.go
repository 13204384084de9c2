// Package topology expands a scale configuration into the abstract description of an
// ssh-benchmark deployment: a namespace, a headless server service, a replicated server
// set and one client workload per concurrency level.
package topology

import (
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const (
	// ServerName names the server StatefulSet, its headless service and its pods.
	ServerName = "server"
	// ClientName prefixes client jobs and names the client-facing service.
	ClientName = "client"

	// AppLabel is the selector key shared by services and workloads.
	AppLabel = "app"

	// SSHPortName is the named port of a single-container server.
	SSHPortName = "ssh"
	// SSHPort is the container port a single-container server binds.
	SSHPort int32 = 22
	// BasePort is the first container port bound in the multi-port layouts.
	BasePort int32 = 20000
	// MaxPort is the highest valid TCP port.
	MaxPort int32 = 65535

	// ObservabilityPortName names the client's console endpoint.
	ObservabilityPortName = "console"
	// DefaultObservabilityPort is where the client's tokio console listens.
	DefaultObservabilityPort int32 = 6669
)

// NamespaceSpec identifies the isolation boundary of a generation run.
type NamespaceSpec struct {
	Name string
}

// PortBinding is one addressable endpoint on a server replica.
type PortBinding struct {
	Name   string
	Port   int32
	Target intstr.IntOrString
}

// ContainerPort is the port a server container actually listens on.
type ContainerPort struct {
	Name   string
	Number int32
}

// ServerContainer is one server process inside a replica together with the
// logical endpoints routed to it.
type ServerContainer struct {
	Name     string
	Port     ContainerPort
	Bindings []PortBinding
}

// Footprint is a declared memory request and limit.
type Footprint struct {
	Request resource.Quantity
	Limit   resource.Quantity
}

// ServerTopology describes the replicated server set. Containers is the per-replica
// template; every replica of the set is identical.
type ServerTopology struct {
	Name       string
	Strategy   Strategy
	Replicas   int32
	Image      string
	Containers []ServerContainer
	Footprint  Footprint
}

// Bindings flattens the bindings of every container, in container order.
func (t ServerTopology) Bindings() []PortBinding {
	var out []PortBinding
	for _, c := range t.Containers {
		out = append(out, c.Bindings...)
	}
	return out
}

// Visibility controls how a service is reachable.
type Visibility string

const (
	VisibilityHeadless     Visibility = "Headless"
	VisibilityNodePort     Visibility = "NodePort"
	VisibilityLoadBalancer Visibility = "LoadBalancer"
)

// ServiceSpec describes a service forwarding a list of ports to the pods matching
// Selector.
type ServiceSpec struct {
	Name       string
	Selector   map[string]string
	Visibility Visibility
	Ports      []PortBinding
}

// Observability is the endpoint a client exposes for runtime inspection.
type Observability struct {
	Name string
	Port int32
}

// AddressHint is the explicit list of server endpoints a client dials.
type AddressHint struct {
	Addrs []string
}

// ClientWorkload is one benchmark job at a fixed concurrency level.
type ClientWorkload struct {
	Name          string
	Concurrency   int
	Addrs         []string
	Observability *Observability
	Footprint     Footprint
}

// Plan is everything one generation run produces, in output order.
type Plan struct {
	Namespace     NamespaceSpec
	Server        ServerTopology
	ServerService ServiceSpec
	ClientImage   string
	Workloads     []ClientWorkload
	ClientService *ServiceSpec
}
