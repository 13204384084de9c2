package topology

import (
	"math"

	"k8s.io/apimachinery/pkg/api/resource"
)

// MemoryPolicy sizes a client's memory footprint from its concurrency level.
// Implementations must be monotonically non-decreasing in concurrency.
type MemoryPolicy interface {
	Footprint(concurrency int) Footprint
}

// FixedMemory gives every client the same footprint.
type FixedMemory struct {
	Size resource.Quantity
}

func (p FixedMemory) Footprint(int) Footprint {
	return Footprint{Request: p.Size.DeepCopy(), Limit: p.Size.DeepCopy()}
}

// ScaledMemory requests Base plus PerConnection for every concurrent connection, and
// limits at LimitRatio times the request.
type ScaledMemory struct {
	Base          resource.Quantity
	PerConnection resource.Quantity
	LimitRatio    int64
}

func (p ScaledMemory) Footprint(concurrency int) Footprint {
	if concurrency < 0 {
		concurrency = 0
	}
	ratio := p.LimitRatio
	if ratio < 1 {
		ratio = 1
	}
	request := addSat(p.Base.Value(), mulSat(p.PerConnection.Value(), int64(concurrency)))
	return Footprint{
		Request: *resource.NewQuantity(request, resource.BinarySI),
		Limit:   *resource.NewQuantity(mulSat(request, ratio), resource.BinarySI),
	}
}

// mulSat and addSat saturate at math.MaxInt64 for non-negative operands, which keeps
// footprints monotonic where plain arithmetic would wrap.
func mulSat(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return a * b
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b int64) int64 {
	if a > 0 && b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// MemoryPolicyFor picks the client sizing policy of the configured strategy.
func MemoryPolicyFor(cfg ScaleConfiguration) MemoryPolicy {
	if cfg.Strategy.ScalesClientMemory() {
		return ScaledMemory{
			Base:          cfg.Client.MemoryBase,
			PerConnection: cfg.Client.MemoryPerConnection,
			LimitRatio:    cfg.Client.LimitRatio,
		}
	}
	return FixedMemory{Size: cfg.Client.Memory}
}
