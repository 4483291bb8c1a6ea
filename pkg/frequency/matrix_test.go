package frequency

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/willbeason/state-of-the-data/pkg/fieldcount"
)

var matrixComparer = cmp.AllowUnexported(Matrix{})

func TestMatrix_Add(t *testing.T) {
	empty := NewMatrix()
	m := empty.Add("a", fieldcount.Vector{"title": 1, "amount": 2})

	assert.Empty(t, empty.Columns(), "Add must not modify the receiver")
	assert.Equal(t, []string{"a"}, m.Columns())
	assert.Equal(t, []string{"amount", "title"}, m.Paths())

	m = m.Add("b", fieldcount.Vector{"title": 3})
	n, ok := m.Count("title", "b")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = m.Count("amount", "b")
	assert.False(t, ok)
	_, ok = m.Count("missing", "a")
	assert.False(t, ok)
}

func TestMatrix_EmptyVectorKeepsColumn(t *testing.T) {
	m := NewMatrix().Add("empty", fieldcount.Vector{})
	assert.Equal(t, []string{"empty"}, m.Columns())
	assert.Empty(t, m.Paths())
}

func randomVectors(rng *rand.Rand, n int) map[string]fieldcount.Vector {
	vectors := make(map[string]fieldcount.Vector, n)
	for i := range n {
		v := make(fieldcount.Vector)
		for range rng.Intn(8) {
			v[fmt.Sprintf("field%d", rng.Intn(12))] += int64(rng.Intn(5) + 1)
		}
		vectors[fmt.Sprintf("doc%02d", i)] = v
	}
	return vectors
}

func TestMerge_Commutative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vectors := randomVectors(rng, 20)

	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}

	var want *Matrix
	for trial := range 10 {
		rng.Shuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})

		got := NewMatrix()
		for _, id := range ids {
			got = got.Add(id, vectors[id])
		}

		if trial == 0 {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got, matrixComparer); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestMerge_Associative(t *testing.T) {
	a := FromVector("a", fieldcount.Vector{"x": 1, "y": 2})
	b := FromVector("b", fieldcount.Vector{"x": 3})
	c := FromVector("a", fieldcount.Vector{"y": 5, "z": 1})

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))
	if diff := cmp.Diff(left, right, matrixComparer); diff != "" {
		t.Error(diff)
	}

	n, _ := left.Count("y", "a")
	assert.Equal(t, int64(7), n)
}

func TestAccumulator_Concurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(rng, 50)

	want := NewMatrix()
	for id, v := range vectors {
		want = want.Add(id, v)
	}

	acc := NewAccumulator()
	var wg sync.WaitGroup
	for id, v := range vectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Add(id, v)
		}()
	}
	wg.Wait()

	if diff := cmp.Diff(want, acc.Matrix(), matrixComparer); diff != "" {
		t.Error(diff)
	}
}
