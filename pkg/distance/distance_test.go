package distance

import (
	"math"
	"math/rand"
	"testing"
)

func TestL2Sqr(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 6, 3}
	if got := l2Sqr(a, b); got != 25 {
		t.Errorf("l2Sqr = %f, want 25", got)
	}
	if got := l2Sqr(a, a); got != 0 {
		t.Errorf("l2Sqr(a, a) = %f, want 0", got)
	}
}

func TestIP(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := ip(a, b); got != 0 {
		t.Errorf("ip of identical unit vectors = %f, want 0", got)
	}
	c := []float32{0, 1, 0}
	if got := ip(a, c); got != 1 {
		t.Errorf("ip of orthogonal vectors = %f, want 1", got)
	}
}

func TestParseMetric(t *testing.T) {
	cases := []struct {
		in   string
		want Metric
		ok   bool
	}{
		{"l2", L2Squared, true},
		{"ip", InnerProduct, true},
		{"inner_product", InnerProduct, true},
		{"cosine", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseMetric(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseMetric(%q) = %v, %v", c.in, got, ok)
		}
	}
}

// Batch variants must induce the same ordering as the scalar kernel
// over any dataset; here each batch distance must agree with the scalar
// one within 1e-4.
func TestBatch4MatchesScalar(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	dim := 32
	q := randVec(r, dim)
	c := [][]float32{randVec(r, dim), randVec(r, dim), randVec(r, dim), randVec(r, dim)}

	for _, metric := range []Metric{L2Squared, InnerProduct} {
		k := New(metric)
		var out [4]float32
		k.Batch4(q, c[0], c[1], c[2], c[3], &out)
		for i := 0; i < 4; i++ {
			want := k.One(q, c[i])
			if diff := math.Abs(float64(out[i] - want)); diff > 1e-4 {
				t.Errorf("metric %v candidate %d: batch %f vs scalar %f", metric, i, out[i], want)
			}
		}
	}
}

func TestKernelSelection(t *testing.T) {
	for _, metric := range []Metric{L2Squared, InnerProduct} {
		k := New(metric)
		if k.One == nil || k.Batch4 == nil {
			t.Fatalf("metric %v: kernel has nil implementations", metric)
		}
		if k.Metric != metric {
			t.Errorf("kernel metric %v, want %v", k.Metric, metric)
		}
	}
}

func randVec(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}
