package xray

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// RepositoryKey builds the per-call repository key prefix-unix-user.
func RepositoryKey(prefix string, now time.Time, user int) string {
	return fmt.Sprintf("%s-%d-%d", prefix, now.Unix(), user)
}

// PolicyName returns a unique security policy name.
func PolicyName() string {
	return "sec_policy_" + ulid.Make().String()
}

// WatchName returns a unique watch name.
func WatchName() string {
	return "watch_" + ulid.Make().String()
}
