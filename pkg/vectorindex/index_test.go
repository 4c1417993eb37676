package vectorindex

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/therealutkarshpriyadarshi/vector/pkg/label"
)

func paramsJSON(t *testing.T, overrides map[string]interface{}) []byte {
	t.Helper()

	params := map[string]interface{}{
		"dtype":                  "float32",
		"metric_type":            "l2",
		"dim":                    8,
		"max_degree":             16,
		"ef_construction":        64,
		"base_quantization_type": "flat",
		"graph_storage_type":     "flat",
		"random_seed":            42,
	}
	for k, v := range overrides {
		params[k] = v
	}
	data, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return data
}

func makeDataset(r *rand.Rand, n, dim int, firstLabel uint64) Dataset {
	ids := make([]label.Label, n)
	vecs := make([]float32, n*dim)
	for i := 0; i < n; i++ {
		ids[i] = label.Label(firstLabel + uint64(i))
		for j := 0; j < dim; j++ {
			vecs[i*dim+j] = r.Float32()
		}
	}
	return Dataset{NumElements: n, Dim: dim, IDs: ids, Vectors: vecs}
}

func TestCreate_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		params []byte
	}{
		{"bad json", KindHNSW, []byte("{not json")},
		{"unknown kind", Kind("ivf"), paramsJSON(t, nil)},
		{"bad metric", KindHNSW, paramsJSON(t, map[string]interface{}{"metric_type": "cosine"})},
		{"zero dim", KindHNSW, paramsJSON(t, map[string]interface{}{"dim": 0})},
		{"hnsw with compressed graph", KindHNSW, paramsJSON(t, map[string]interface{}{"graph_storage_type": "compressed"})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Create(c.kind, c.params)
			if !IsKind(err, InvalidArgument) {
				t.Fatalf("expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestAdd_ValidatesDataset(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(1))

	if _, err := ix.Add(Dataset{NumElements: 0, Dim: 8}); !IsKind(err, InvalidArgument) {
		t.Errorf("zero num_elements: expected InvalidArgument, got %v", err)
	}

	ds := makeDataset(r, 4, 4, 0)
	if _, err := ix.Add(ds); !IsKind(err, InvalidArgument) {
		t.Errorf("dim mismatch: expected InvalidArgument, got %v", err)
	}

	ds = makeDataset(r, 4, 8, 0)
	ds.IDs = ds.IDs[:2]
	if _, err := ix.Add(ds); !IsKind(err, InvalidArgument) {
		t.Errorf("short ids: expected InvalidArgument, got %v", err)
	}
}

func TestAdd_DuplicateLabel(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(2))

	if _, err := ix.Add(makeDataset(r, 10, 8, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	_, err = ix.Add(makeDataset(r, 1, 8, 5))
	if !IsKind(err, DuplicateLabel) {
		t.Fatalf("expected DuplicateLabel, got %v", err)
	}
	if got := ix.GetStats().NumElements; got != 10 {
		t.Fatalf("failed add mutated count: %d", got)
	}
}

func TestKNNSearch_EndToEnd(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(3))
	ds := makeDataset(r, 300, 8, 0)
	ids, err := ix.Add(ds)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(ids) != 300 {
		t.Fatalf("expected 300 assigned ids, got %d", len(ids))
	}

	// Self-query: the stored vector itself must come back first.
	query := ds.Vectors[42*8 : 43*8]
	res, err := ix.KNNSearch(query, 5, []byte(`{"ef_search": 100}`))
	if err != nil {
		t.Fatalf("KNNSearch failed: %v", err)
	}
	if len(res.Labels) != 5 {
		t.Fatalf("expected 5 results, got %d", len(res.Labels))
	}
	if res.Labels[0] != 42 || res.Distances[0] != 0 {
		t.Errorf("self-query did not rank itself first: label %d dist %f", res.Labels[0], res.Distances[0])
	}
	for i := 1; i < len(res.Distances); i++ {
		if res.Distances[i] < res.Distances[i-1] {
			t.Errorf("distances out of order at %d", i)
		}
	}
}

func TestKNNSearch_RejectsBadParams(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	q := make([]float32, 8)

	if _, err := ix.KNNSearch(q, 5, []byte("{bad")); !IsKind(err, InvalidArgument) {
		t.Errorf("bad params json: expected InvalidArgument, got %v", err)
	}
	if _, err := ix.KNNSearch(q, 0, nil); !IsKind(err, InvalidArgument) {
		t.Errorf("k=0: expected InvalidArgument, got %v", err)
	}
	if _, err := ix.KNNSearch(q, 5, []byte(`{"skip_ratio": 2}`)); !IsKind(err, InvalidArgument) {
		t.Errorf("skip_ratio out of range: expected InvalidArgument, got %v", err)
	}
	if _, err := ix.KNNSearch(make([]float32, 4), 5, nil); !IsKind(err, InvalidArgument) {
		t.Errorf("query dim mismatch: expected InvalidArgument, got %v", err)
	}
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// The store is untrained before the first Add; searches still
	// answer, they just find nothing.
	res, err := ix.KNNSearch(make([]float32, 8), 3, nil)
	if err != nil {
		t.Fatalf("KNNSearch on empty index errored: %v", err)
	}
	if len(res.Labels) != 0 {
		t.Fatalf("expected empty result, got %d", len(res.Labels))
	}
}

func TestRangeSearch_EndToEnd(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(4))
	ds := makeDataset(r, 300, 8, 0)
	if _, err := ix.Add(ds); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	query := ds.Vectors[0:8]
	knn, err := ix.KNNSearch(query, 10, []byte(`{"ef_search": 100}`))
	if err != nil {
		t.Fatalf("KNNSearch failed: %v", err)
	}
	radius := knn.Distances[9]

	res, err := ix.RangeSearch(query, radius, []byte(`{"ef_search": 100}`), 0)
	if err != nil {
		t.Fatalf("RangeSearch failed: %v", err)
	}
	if len(res.Labels) < 8 {
		t.Errorf("range covering the 10 nearest returned only %d", len(res.Labels))
	}
	for _, d := range res.Distances {
		if d > radius+1e-3 {
			t.Errorf("range result at %f exceeds radius %f", d, radius)
		}
	}

	limited, err := ix.RangeSearch(query, radius, nil, 3)
	if err != nil {
		t.Fatalf("RangeSearch with limit failed: %v", err)
	}
	if len(limited.Labels) > 3 {
		t.Errorf("limit 3 returned %d results", len(limited.Labels))
	}
}

func TestSerialize_RoundTripMatchesStatsAndResults(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(6))
	ds := makeDataset(r, 200, 8, 1) // labels 1..200
	if _, err := ix.Add(ds); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var buf bytes.Buffer
	if err := ix.Serialize(&buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	restored, err := Deserialize(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	before, after := ix.GetStats(), restored.GetStats()
	if before.NumElements != after.NumElements ||
		before.LayerCount != after.LayerCount ||
		before.EntryPoint != after.EntryPoint {
		t.Fatalf("stats changed across round trip: %+v vs %+v", before, after)
	}

	query := ds.Vectors[0:8]
	a, err := ix.KNNSearch(query, 10, []byte(`{"ef_search": 100}`))
	if err != nil {
		t.Fatalf("KNNSearch failed: %v", err)
	}
	b, err := restored.KNNSearch(query, 10, []byte(`{"ef_search": 100}`))
	if err != nil {
		t.Fatalf("KNNSearch on restored failed: %v", err)
	}
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] || a.Distances[i] != b.Distances[i] {
			t.Fatalf("result %d differs: (%d, %f) vs (%d, %f)", i,
				a.Labels[i], a.Distances[i], b.Labels[i], b.Distances[i])
		}
	}
}

func TestLoadFrom_RejectsIncompatibleParams(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(8))
	if _, err := ix.Add(makeDataset(r, 50, 8, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var buf bytes.Buffer
	if err := ix.Serialize(&buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	other, err := Create(KindHNSW, paramsJSON(t, map[string]interface{}{"max_degree": 32}))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := other.LoadFrom(bytes.NewReader(buf.Bytes())); !IsKind(err, IncompatibleIndex) {
		t.Fatalf("expected IncompatibleIndex, got %v", err)
	}
}

func TestCompressedGraph_SmallerAndEquivalent(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	ds := makeDataset(r, 200, 8, 0)

	flat, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create flat failed: %v", err)
	}
	comp, err := Create(KindHGraph, paramsJSON(t, map[string]interface{}{"graph_storage_type": "compressed"}))
	if err != nil {
		t.Fatalf("Create compressed failed: %v", err)
	}

	if _, err := flat.Add(ds); err != nil {
		t.Fatalf("Add to flat failed: %v", err)
	}
	if _, err := comp.Add(ds); err != nil {
		t.Fatalf("Add to compressed failed: %v", err)
	}

	if fm, cm := flat.GetStats().MemoryBytes, comp.GetStats().MemoryBytes; cm >= fm {
		t.Errorf("compressed memory %d not smaller than flat %d", cm, fm)
	}

	// Same seed, same insert sequence: the two back-ends must answer
	// queries identically.
	for qi := 0; qi < 20; qi++ {
		q := ds.Vectors[qi*8 : (qi+1)*8]
		a, err := flat.KNNSearch(q, 10, []byte(`{"ef_search": 100}`))
		if err != nil {
			t.Fatalf("flat KNNSearch failed: %v", err)
		}
		b, err := comp.KNNSearch(q, 10, []byte(`{"ef_search": 100}`))
		if err != nil {
			t.Fatalf("compressed KNNSearch failed: %v", err)
		}
		for i := range a.Labels {
			if a.Labels[i] != b.Labels[i] {
				t.Fatalf("query %d result %d: flat label %d vs compressed %d", qi, i, a.Labels[i], b.Labels[i])
			}
		}
	}
}

func TestGetStats_Shape(t *testing.T) {
	ix, err := Create(KindHNSW, paramsJSON(t, nil))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r := rand.New(rand.NewSource(12))
	if _, err := ix.Add(makeDataset(r, 30, 8, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	stats := ix.GetStats()
	if stats.IndexName != "hnsw" {
		t.Errorf("index_name = %q, want hnsw", stats.IndexName)
	}
	if stats.NumElements != 30 {
		t.Errorf("num_elements = %d, want 30", stats.NumElements)
	}
	if stats.MemoryBytes <= 0 {
		t.Errorf("memory_bytes = %d, want positive", stats.MemoryBytes)
	}
	if stats.LayerCount < 1 {
		t.Errorf("layer_count = %d, want >= 1", stats.LayerCount)
	}

	data, err := ix.GetStatsJSON()
	if err != nil {
		t.Fatalf("GetStatsJSON failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("stats json does not parse: %v", err)
	}
	for _, key := range []string{"index_name", "num_elements", "memory_bytes", "entry_point", "layer_count"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("stats json missing %q", key)
		}
	}
}
