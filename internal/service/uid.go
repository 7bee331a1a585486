package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/service-desk/internal/repository"
	util "github.com/spec-kit/service-desk/pkg/util"
)

// uidMaxAttempts bounds the retry loop on public-UID collisions.
// Duplicate-key failures are the expected concurrency-control path
// when two submissions race on the same day, not an error.
const uidMaxAttempts = 5

// uidDayPrefix builds the day-scoped namespace: "YYYYMMDD-" for
// tickets, "<namespace>-YYYYMMDD-" for onboarding requests.
func uidDayPrefix(namespace string, day time.Time) string {
	prefix := day.Format("20060102") + "-"
	if namespace != "" {
		prefix = namespace + "-" + prefix
	}
	return prefix
}

func formatUID(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// allocateUID drives creation under the day-scoped sequence: it
// formats candidate UIDs starting at count+1 and calls create until
// the insert sticks, bumping the sequence on each unique violation.
func allocateUID(prefix string, count int, create func(uid string) error) (string, error) {
	for attempt := 0; attempt < uidMaxAttempts; attempt++ {
		uid := formatUID(prefix, count+1+attempt)
		err := create(uid)
		switch {
		case err == nil:
			return uid, nil
		case errors.Is(err, repository.ErrDuplicateKey):
			continue
		default:
			return "", err
		}
	}
	return "", util.NewInternalError(fmt.Errorf("uid allocation exhausted after %d attempts on prefix %s", uidMaxAttempts, prefix))
}
