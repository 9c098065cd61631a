// Package prime sizes hash tables to prime moduli.
//
// Sketch tables use distinct primes so that two hash values colliding in one
// table are unlikely to collide in another.
package prime

// IsPrime reports whether n is prime, by trial division over odd factors.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for f := uint64(3); f <= n/f; f += 2 {
		if n%f == 0 {
			return false
		}
	}
	return true
}

// Below returns the largest prime strictly less than n, or 0 if none exists.
func Below(n uint64) uint64 {
	if n <= 2 {
		return 0
	}
	if n == 3 {
		return 2
	}
	c := n - 1
	if c%2 == 0 {
		c--
	}
	for ; c >= 3; c -= 2 {
		if IsPrime(c) {
			return c
		}
	}
	return 2
}

// Above returns the smallest prime strictly greater than n.
func Above(n uint64) uint64 {
	if n < 2 {
		return 2
	}
	c := n + 1
	if c%2 == 0 {
		c++
	}
	for !IsPrime(c) {
		c += 2
	}
	return c
}

// DecreasingBelow returns count primes, the first being the largest prime
// below n and each subsequent one the largest prime below its predecessor.
// Returns nil if n is too small to yield count primes.
func DecreasingBelow(n uint64, count int) []uint64 {
	out := make([]uint64, 0, count)
	for range count {
		p := Below(n)
		if p == 0 {
			return nil
		}
		out = append(out, p)
		n = p
	}
	return out
}
