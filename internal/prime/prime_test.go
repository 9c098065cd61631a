package prime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsPrime(t *testing.T) {
	primes := []uint64{2, 3, 5, 7, 11, 13, 997, 7919, 1_000_003}
	for _, p := range primes {
		require.True(t, IsPrime(p), "%d", p)
	}
	composites := []uint64{0, 1, 4, 9, 15, 21, 25, 1000, 7917, 1_000_001}
	for _, c := range composites {
		require.False(t, IsPrime(c), "%d", c)
	}
}

func TestBelowAndAbove(t *testing.T) {
	require.Equal(t, uint64(0), Below(2))
	require.Equal(t, uint64(2), Below(3))
	require.Equal(t, uint64(3), Below(4))
	require.Equal(t, uint64(7), Below(11))
	require.Equal(t, uint64(997), Below(1000))

	require.Equal(t, uint64(2), Above(0))
	require.Equal(t, uint64(3), Above(2))
	require.Equal(t, uint64(11), Above(7))
	require.Equal(t, uint64(1009), Above(1000))
}

func TestDecreasingBelow(t *testing.T) {
	got := DecreasingBelow(12, 4)
	require.Equal(t, []uint64{11, 7, 5, 3}, got)

	got = DecreasingBelow(1_000_000, 8)
	require.Len(t, got, 8)
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i], got[i-1])
		require.True(t, IsPrime(got[i]))
	}

	require.Nil(t, DecreasingBelow(6, 4), "only 5, 3, 2 exist below 6")
}
