// Package distance implements the two required distance kernels
// (squared L2 and inner-product-as-distance) plus batched variants, with
// a runtime probe selecting the fastest available implementation. A
// scalar fallback always exists.
package distance

import "golang.org/x/sys/cpu"

// Metric identifies which distance function a vector store was trained
// under.
type Metric int

const (
	L2Squared Metric = iota
	InnerProduct
)

func (m Metric) String() string {
	switch m {
	case L2Squared:
		return "l2"
	case InnerProduct:
		return "ip"
	default:
		return "unknown"
	}
}

// ParseMetric maps the wire/JSON names used by build parameters to a
// Metric.
func ParseMetric(s string) (Metric, bool) {
	switch s {
	case "l2", "L2Squared", "l2_squared":
		return L2Squared, true
	case "ip", "InnerProduct", "inner_product":
		return InnerProduct, true
	default:
		return 0, false
	}
}

// Func computes the distance between two equal-length vectors; smaller
// means closer under the configured metric.
type Func func(a, b []float32) float32

// BatchFunc computes the distance from a single query to four candidates
// at once, sharing the query across the batch, and writes the four
// distances to out in candidate order. A wide kernel exists only for Go's lack of
// explicit SIMD: it is a loop-unrolled scalar path that amortizes bounds
// checks and improves cache behavior across the four candidates, not a
// literal vector instruction.
type BatchFunc func(q []float32, c0, c1, c2, c3 []float32, out *[4]float32)

// Kernel bundles the scalar and batch implementations selected for a
// metric at construction time.
type Kernel struct {
	Metric Metric
	One    Func
	Batch4 BatchFunc
}

// New selects a Kernel for the given metric. The selection is a runtime
// probe (golang.org/x/sys/cpu feature flags), never a compile-time
// branch, so the same binary runs the best available path on whatever
// host it lands on and always has the scalar fallback available.
func New(metric Metric) Kernel {
	wide := hasWideIntegerPipeline()
	switch metric {
	case InnerProduct:
		if wide {
			return Kernel{Metric: metric, One: ip, Batch4: ipBatch4Wide}
		}
		return Kernel{Metric: metric, One: ip, Batch4: ipBatch4Scalar}
	default:
		if wide {
			return Kernel{Metric: L2Squared, One: l2Sqr, Batch4: l2SqrBatch4Wide}
		}
		return Kernel{Metric: L2Squared, One: l2Sqr, Batch4: l2SqrBatch4Scalar}
	}
}

// hasWideIntegerPipeline reports whether the host CPU has a wide enough
// execution pipeline (AVX2 on x86-64, ASIMD on arm64) to make the
// loop-unrolled batch-4 path worthwhile over the plain scalar loop. On
// any other architecture, or when the probe can't tell, the scalar path
// is used unconditionally. Correctness never depends on this choice,
// only throughput: Batch4 and One share the same arithmetic, so they
// induce the same ordering over any dataset.
func hasWideIntegerPipeline() bool {
	if cpu.X86.HasAVX2 {
		return true
	}
	if cpu.ARM64.HasASIMD {
		return true
	}
	return false
}

func l2Sqr(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func ip(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return 1 - sum
}

func l2SqrBatch4Scalar(q []float32, c0, c1, c2, c3 []float32, out *[4]float32) {
	out[0] = l2Sqr(q, c0)
	out[1] = l2Sqr(q, c1)
	out[2] = l2Sqr(q, c2)
	out[3] = l2Sqr(q, c3)
}

func ipBatch4Scalar(q []float32, c0, c1, c2, c3 []float32, out *[4]float32) {
	out[0] = ip(q, c0)
	out[1] = ip(q, c1)
	out[2] = ip(q, c2)
	out[3] = ip(q, c3)
}

// l2SqrBatch4Wide processes the four candidates in one loop over the
// query dimensions, keeping four running sums live at once so the
// compiler can interleave the four independent dependency chains.
func l2SqrBatch4Wide(q []float32, c0, c1, c2, c3 []float32, out *[4]float32) {
	var s0, s1, s2, s3 float32
	for i, qi := range q {
		d0 := qi - c0[i]
		d1 := qi - c1[i]
		d2 := qi - c2[i]
		d3 := qi - c3[i]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	out[0], out[1], out[2], out[3] = s0, s1, s2, s3
}

func ipBatch4Wide(q []float32, c0, c1, c2, c3 []float32, out *[4]float32) {
	var s0, s1, s2, s3 float32
	for i, qi := range q {
		s0 += qi * c0[i]
		s1 += qi * c1[i]
		s2 += qi * c2[i]
		s3 += qi * c3[i]
	}
	out[0], out[1], out[2], out[3] = 1-s0, 1-s1, 1-s2, 1-s3
}
