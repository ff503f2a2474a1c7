package storage

import "testing"

func TestNewReplacerPolicies(t *testing.T) {
	tests := []struct {
		policy    string
		k         uint32
		expectedK uint32
	}{
		{PolicyLRUK, 3, 3},
		{PolicyLRUK, 0, DefaultReplacerK},
		{PolicyLRU, 5, 1},
		{"unknown", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			r, ok := NewReplacer(tt.policy, 8, tt.k).(*LRUKReplacer)
			if !ok {
				t.Fatal("Expected *LRUKReplacer")
			}
			if r.K() != tt.expectedK {
				t.Errorf("Expected k %d, got %d", tt.expectedK, r.K())
			}
			if r.Capacity() != 8 {
				t.Errorf("Expected capacity 8, got %d", r.Capacity())
			}
		})
	}
}
