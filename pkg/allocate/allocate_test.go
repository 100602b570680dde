package allocate

import (
	"errors"
	"math/rand"
	"testing"
)

func TestOverage(t *testing.T) {
	tests := []struct {
		name      string
		itemCosts []int64
		total     int64
		expected  []int64
	}{
		{"two items with tax", []int64{2429, 1699}, 4495, []int64{216, 151}},
		{"no overage", []int64{2429, 1699}, 4128, []int64{0, 0}},
		{"five equal items", []int64{100, 100, 100, 100, 100}, 505, []int64{1, 1, 1, 1, 1}},
		{"uneven thirds", []int64{2000, 2000, 2000}, 6503, []int64{168, 168, 167}},
		{"tiny and large item", []int64{99, 19999}, 21712, []int64{8, 1606}},
		{"weighted pair", []int64{2000, 1500}, 3700, []int64{114, 86}},
		{"single item", []int64{1000}, 1250, []int64{250}},
		{"single item no overage", []int64{1000}, 1000, []int64{0}},
		{"zero cost items", []int64{0, 0}, 100, []int64{0, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Overage(tt.itemCosts, tt.total)
			if err != nil {
				t.Fatalf("Overage() returned error: %v", err)
			}
			if len(shares) != len(tt.expected) {
				t.Fatalf("Overage() returned %d shares, expected %d", len(shares), len(tt.expected))
			}
			for i := range shares {
				if shares[i] != tt.expected[i] {
					t.Errorf("Overage() = %v, expected %v", shares, tt.expected)
					break
				}
			}
		})
	}
}

func TestOverageInvalidTotal(t *testing.T) {
	tests := []struct {
		name      string
		itemCosts []int64
		total     int64
	}{
		{"single item below cost", []int64{1000}, 900},
		{"multiple items below subtotal", []int64{500, 500}, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Overage(tt.itemCosts, tt.total)
			if !errors.Is(err, ErrInvalidTotal) {
				t.Errorf("Overage() error = %v, expected ErrInvalidTotal", err)
			}
		})
	}
}

func TestOverageNoItems(t *testing.T) {
	if _, err := Overage(nil, 100); !errors.Is(err, ErrNoItems) {
		t.Errorf("Overage(nil) error = %v, expected ErrNoItems", err)
	}
}

// TestOverageExactness checks that shares always sum exactly to the overage
// for random cost vectors, so the split never loses or gains a cent.
func TestOverageExactness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		n := 1 + rng.Intn(12)
		itemCosts := make([]int64, n)
		var subtotal int64
		for j := range itemCosts {
			itemCosts[j] = int64(rng.Intn(50000))
			subtotal += itemCosts[j]
		}
		total := subtotal + int64(rng.Intn(10000))

		shares, err := Overage(itemCosts, total)
		if err != nil {
			t.Fatalf("Overage(%v, %d) returned error: %v", itemCosts, total, err)
		}

		var sum int64
		for _, s := range shares {
			sum += s
		}
		if sum != total-subtotal {
			t.Fatalf("Overage(%v, %d) shares sum to %d, expected %d", itemCosts, total, sum, total-subtotal)
		}
	}
}
