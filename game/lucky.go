package game

// IsPrime reports whether n is a prime number.
func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// IsPerfectSquare reports whether n is the square of an integer.
func IsPerfectSquare(n int) bool {
	if n < 0 {
		return false
	}
	r := 0
	for r*r < n {
		r++
	}
	return r*r == n
}

// IsLucky reports whether n is lucky within a grid of the given size:
// prime or a perfect square, and inside 1..gridSize.
func IsLucky(n, gridSize int) bool {
	if n < 1 || n > gridSize {
		return false
	}
	return IsPrime(n) || IsPerfectSquare(n)
}
