package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash for the break-glass local admin
// credential. Costs outside the bcrypt range fall back to the library
// default rather than erroring, the cost comes from configuration.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword checks a plaintext attempt against a stored hash.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
