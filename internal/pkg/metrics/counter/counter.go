package counter

import (
	"context"
	"strconv"

	"github.com/cornerstone-hq/cornerstone/internal/pkg/cache"
)

const usageKeyPrefix = "usage:counters:"

// AddUsage increments the pending usage counter for an account and feature
// in Redis. Counters feed plan limit checks and are cheap to bump from the
// request path.
func AddUsage(feature string, accountID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(accountID), 10)
	return cache.GetClient().HIncrBy(ctx, usageKeyPrefix+feature, field, 1).Err()
}

// UsageFor returns the accumulated usage of a feature for an account. A
// missing counter reads as zero.
func UsageFor(feature string, accountID uint) (int64, error) {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(accountID), 10)

	raw, err := cache.GetClient().HGet(ctx, usageKeyPrefix+feature, field).Result()
	if err != nil {
		if err.Error() == "redis: nil" {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ResetUsage clears the counter of one account, e.g. at the start of a new
// billing period.
func ResetUsage(feature string, accountID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(accountID), 10)
	return cache.GetClient().HDel(ctx, usageKeyPrefix+feature, field).Err()
}
