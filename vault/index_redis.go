package vault

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// RedisIndex keeps the authoritative fingerprint map in a Redis hash so
// several hosts can back up into the same repository. A LocalIndex rides
// along as read cache and as the durable segment writer: segments stay on
// the repository filesystem, Redis arbitrates concurrent inserts.
type RedisIndex struct {
	rdb   redis.UniversalClient
	local *LocalIndex
	// key of the fingerprint hash and of the bundle id counter,
	// namespaced by the repository UUID.
	fpKey string
	idKey string
}

func getFPCacheKey(repoUUID string) string {
	return "vaults:" + repoUUID + ":fp"
}

func getBundleIDKey(repoUUID string) string {
	return "vaults:" + repoUUID + ":bundleid"
}

// NewRedisIndex connects to addr ("host:port[/db]", anything redis.ParseURL
// accepts once prefixed with the scheme) and preloads the hash into the
// local cache.
func NewRedisIndex(addr, repoUUID string, local *LocalIndex) (*RedisIndex, error) {
	uri := addr
	if !strings.Contains(uri, "://") {
		uri = "redis://" + uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("url parse %s: %w", internal.RemovePassword(uri), err)
	}
	opt, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("redis parse %s: %w", internal.RemovePassword(uri), err)
	}
	if opt.Password == "" {
		opt.Password = os.Getenv("REDIS_PASSWORD")
	}
	opt.MaxRetries = -1
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", internal.RemovePassword(uri), err)
	}
	idx := &RedisIndex{
		rdb:   rdb,
		local: local,
		fpKey: getFPCacheKey(repoUUID),
		idKey: getBundleIDKey(repoUUID),
	}
	if err := idx.loadFPCache(); err != nil {
		rdb.Close()
		return nil, err
	}
	return idx, nil
}

func encodeLocation(loc Location) string {
	return fmt.Sprintf("%d:%d:%d", loc.BundleID, loc.Offset, loc.Length)
}

func decodeLocation(s string) (Location, error) {
	var loc Location
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return loc, fmt.Errorf("malformed location %q", s)
	}
	var err error
	if loc.BundleID, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		return loc, err
	}
	if loc.Offset, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		return loc, err
	}
	length, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return loc, err
	}
	loc.Length = uint32(length)
	return loc, nil
}

// loadFPCache walks the whole fingerprint hash with HSCAN and populates
// the local cache, so lookups during backup stay off the network.
func (idx *RedisIndex) loadFPCache() error {
	ctx := context.Background()
	n := 0
	iter := idx.rdb.HScan(ctx, idx.fpKey, 0, "*", 1000).Iterator()
	for iter.Next(ctx) {
		fp := iter.Val()
		if !iter.Next(ctx) {
			break
		}
		loc, err := decodeLocation(iter.Val())
		if err != nil {
			logger.Warnf("loadFPCache: skipping fp %s: %v", internal.StringToHex(fp), err)
			continue
		}
		idx.local.InsertIfAbsent(fp, loc)
		n++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	logger.Infof("loaded %d fingerprints from redis into local cache", n)
	return nil
}

func (idx *RedisIndex) Lookup(fp string) (Location, bool) {
	if loc, ok := idx.local.Lookup(fp); ok {
		return loc, true
	}
	val, err := idx.rdb.HGet(context.Background(), idx.fpKey, fp).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Errorf("Lookup: HGet(%s) failed: %v", internal.StringToHex(fp), err)
		}
		return Location{}, false
	}
	loc, err := decodeLocation(val)
	if err != nil {
		logger.Errorf("Lookup: bad value for fp %s: %v", internal.StringToHex(fp), err)
		return Location{}, false
	}
	idx.local.InsertIfAbsent(fp, loc)
	return loc, true
}

// InsertIfAbsent claims fp via HSetNX, which makes Redis the single point
// deciding the winner when concurrent writers race on the same chunk. A
// failed command is reported as an error, never as a lost race: the caller
// cannot tell whether the claim landed.
func (idx *RedisIndex) InsertIfAbsent(fp string, loc Location) (bool, error) {
	ctx := context.Background()
	set, err := idx.rdb.HSetNX(ctx, idx.fpKey, fp, encodeLocation(loc)).Result()
	if err != nil {
		return false, fmt.Errorf("HSetNX(%s): %w", internal.StringToHex(fp), err)
	}
	if set {
		idx.local.InsertIfAbsent(fp, loc)
		return true, nil
	}
	// Lost the race; cache the winner's location.
	idx.Lookup(fp)
	return false, nil
}

func (idx *RedisIndex) WriteSegment(bundleID uint64, entries []IndexEntry) error {
	return idx.local.WriteSegment(bundleID, entries)
}

func (idx *RedisIndex) NextBundleID() (uint64, error) {
	id, err := idx.rdb.Incr(context.Background(), idx.idKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate bundle id: %w", err)
	}
	return uint64(id), nil
}

func (idx *RedisIndex) Range(f func(fp string, loc Location) bool) {
	idx.local.Range(f)
}

func (idx *RedisIndex) RemoveBundles(dead *internal.UInt64Set) error {
	ctx := context.Background()
	var doomed []string
	idx.local.Range(func(fp string, loc Location) bool {
		if dead.Contains(loc.BundleID) {
			doomed = append(doomed, fp)
		}
		return true
	})
	if len(doomed) > 0 {
		if err := idx.rdb.HDel(ctx, idx.fpKey, doomed...).Err(); err != nil {
			return fmt.Errorf("failed to remove %d fingerprints from redis: %w", len(doomed), err)
		}
	}
	return idx.local.RemoveBundles(dead)
}

func (idx *RedisIndex) Count() int {
	return idx.local.Count()
}

func (idx *RedisIndex) Close() error {
	return idx.rdb.Close()
}
