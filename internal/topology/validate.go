package topology

import (
	"fmt"
	"strconv"

	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/validation"
)

// ResolveAddresses turns a target selection into the addresses clients dial:
// <service>-<ordinal>.<service>:<port>. Ordinals must exist in the topology and ports
// must be advertised by the service.
func ResolveAddresses(t ServerTopology, svc ServiceSpec, sel TargetSelector) (AddressHint, error) {
	p := &problems{}

	ordinals := sel.Ordinals
	if len(ordinals) == 0 {
		ordinals = make([]int32, 0, t.Replicas)
		for i := int32(0); i < t.Replicas; i++ {
			ordinals = append(ordinals, i)
		}
	}
	for _, o := range ordinals {
		if o < 0 || o >= t.Replicas {
			p.addf("targets.ordinals: ordinal %d out of range for %d replicas", o, t.Replicas)
		}
	}

	advertised := make(map[int32]bool, len(svc.Ports))
	for _, port := range svc.Ports {
		advertised[port.Port] = true
	}
	ports := sel.Ports
	if len(ports) == 0 {
		ports = make([]int32, 0, len(svc.Ports))
		for _, port := range svc.Ports {
			ports = append(ports, port.Port)
		}
	}
	for _, port := range ports {
		if !advertised[port] {
			p.addf("targets.ports: port %d is not advertised by service %q", port, svc.Name)
		}
	}
	if err := p.err(); err != nil {
		return AddressHint{}, err
	}

	addrs := make([]string, 0, len(ordinals)*len(ports))
	for _, o := range ordinals {
		host := fmt.Sprintf("%s-%d.%s", t.Name, o, svc.Name)
		for _, port := range ports {
			addrs = append(addrs, host+":"+strconv.Itoa(int(port)))
		}
	}
	return AddressHint{Addrs: addrs}, nil
}

// ValidateTopology checks that a topology and its headless service agree: unique
// names within a replica, every binding routed to a port some container binds, and
// a service port list that is exactly the set of bindings.
func ValidateTopology(t ServerTopology, svc ServiceSpec) error {
	p := &problems{}

	if t.Replicas <= 0 {
		p.addf("topology: replicas must be positive, got %d", t.Replicas)
	}
	if len(t.Containers) == 0 {
		p.addf("topology: a replica needs at least one container")
	}

	containerNames := make(map[string]bool)
	portNames := make(map[string]bool)
	portNumbers := make(map[int32]bool)
	for _, c := range t.Containers {
		if containerNames[c.Name] {
			p.addf("topology: duplicate container name %q", c.Name)
		}
		containerNames[c.Name] = true
		if msgs := validation.IsValidPortName(c.Port.Name); len(msgs) > 0 {
			p.addf("topology: container %q port name %q: %s", c.Name, c.Port.Name, msgs[0])
		}
		if portNames[c.Port.Name] {
			p.addf("topology: duplicate container port name %q", c.Port.Name)
		}
		portNames[c.Port.Name] = true
		if portNumbers[c.Port.Number] {
			p.addf("topology: duplicate container port %d", c.Port.Number)
		}
		portNumbers[c.Port.Number] = true
	}

	bindings := make(map[string]PortBinding)
	for _, b := range t.Bindings() {
		if _, dup := bindings[b.Name]; dup {
			p.addf("topology: duplicate binding name %q", b.Name)
			continue
		}
		bindings[b.Name] = b
		if msgs := validation.IsValidPortName(b.Name); len(msgs) > 0 {
			p.addf("topology: binding name %q: %s", b.Name, msgs[0])
		}
		switch b.Target.Type {
		case intstr.String:
			if !portNames[b.Target.StrVal] {
				p.addf("topology: binding %q targets unknown port name %q", b.Name, b.Target.StrVal)
			}
		case intstr.Int:
			if !portNumbers[b.Target.IntVal] {
				p.addf("topology: binding %q targets unbound port %d", b.Name, b.Target.IntVal)
			}
		}
	}

	if svc.Visibility != VisibilityHeadless {
		p.addf("service %q: server service must be headless, got %s", svc.Name, svc.Visibility)
	}
	if len(svc.Ports) != len(bindings) {
		p.addf("service %q: advertises %d ports but the topology binds %d", svc.Name, len(svc.Ports), len(bindings))
	}
	for _, port := range svc.Ports {
		b, ok := bindings[port.Name]
		if !ok {
			p.addf("service %q: port %q is not bound by any container", svc.Name, port.Name)
			continue
		}
		if b.Port != port.Port || b.Target != port.Target {
			p.addf("service %q: port %q does not match its binding", svc.Name, port.Name)
		}
	}

	return p.err()
}
