package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

func testCredentials(n int) []model.Credential {
	creds := make([]model.Credential, n)
	for i := range creds {
		creds[i] = model.Credential{Name: string(rune('a' + i)), APIKey: "key-" + string(rune('a'+i))}
	}
	return creds
}

func TestCredentialPool_Rotation(t *testing.T) {
	pool := NewCredentialPool(testCredentials(2), 0)

	cred, ok := pool.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cred.Name)
	assert.Equal(t, -1, pool.Remaining())

	pool.MarkExhausted()
	cred, ok = pool.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cred.Name)

	pool.MarkExhausted()
	_, ok = pool.Current()
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, pool.Exhausted())

	// Further calls on an empty pool are harmless
	pool.MarkExhausted()
	pool.Consume(5)
	assert.Equal(t, []string{"a", "b"}, pool.Exhausted())
	assert.Equal(t, 0, pool.Remaining())
}

func TestCredentialPool_Acquire(t *testing.T) {
	tests := []struct {
		name          string
		quota         int
		consume       []int
		cost          int
		wantCred      string
		wantOK        bool
		wantExhausted []string
	}{
		{
			name:     "fresh credential",
			quota:    10,
			cost:     3,
			wantCred: "a",
			wantOK:   true,
		},
		{
			name:          "insufficient quota rotates before the request",
			quota:         10,
			consume:       []int{8},
			cost:          3,
			wantCred:      "b",
			wantOK:        true,
			wantExhausted: []string{"a"},
		},
		{
			name:          "cost above every quota",
			quota:         2,
			cost:          3,
			wantOK:        false,
			wantExhausted: []string{"a", "b"},
		},
		{
			name:     "untracked quota never pre-exhausts",
			quota:    0,
			consume:  []int{1000},
			cost:     1000,
			wantCred: "a",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewCredentialPool(testCredentials(2), tt.quota)
			for _, units := range tt.consume {
				pool.Consume(units)
			}

			cred, ok := pool.Acquire(tt.cost)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCred, cred.Name)
			if tt.wantExhausted == nil {
				tt.wantExhausted = []string{}
			}
			assert.Equal(t, tt.wantExhausted, pool.Exhausted())
		})
	}
}

func TestCredentialPool_ConsumeFloorsAtZero(t *testing.T) {
	pool := NewCredentialPool(testCredentials(1), 3)
	pool.Consume(2)
	assert.Equal(t, 1, pool.Remaining())
	pool.Consume(5)
	assert.Equal(t, 0, pool.Remaining())

	_, ok := pool.Acquire(1)
	assert.False(t, ok)
}

func TestCredentialPool_IndependentInstances(t *testing.T) {
	creds := testCredentials(1)
	first := NewCredentialPool(creds, 5)
	second := NewCredentialPool(creds, 5)

	first.MarkExhausted()

	_, ok := second.Current()
	assert.True(t, ok, "pools do not share rotation state")
}
