// README: Redis hash of each chair's newest ping, read by the nearby chair search.
package location

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"isuride/internal/types"
)

const latestKey = "chair:latest_ping"

type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func encodePing(p Ping) string {
	return fmt.Sprintf("%d,%d,%d,%s", p.Coordinate.Latitude, p.Coordinate.Longitude, p.CreatedAt.UnixMicro(), p.ID)
}

func decodePing(chairID types.ID, v string) (Ping, bool) {
	parts := strings.SplitN(v, ",", 4)
	if len(parts) != 4 {
		return Ping{}, false
	}
	lat, err1 := strconv.Atoi(parts[0])
	lon, err2 := strconv.Atoi(parts[1])
	us, err3 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Ping{}, false
	}
	return Ping{
		ID:         types.ID(parts[3]),
		ChairID:    chairID,
		Coordinate: types.Coordinate{Latitude: lat, Longitude: lon},
		CreatedAt:  time.UnixMicro(us),
	}, true
}

// putIfNewer keeps the newest ping per chair when writers race.
var putIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur then
  local ts = tonumber(string.match(cur, '^[^,]*,[^,]*,([^,]*)'))
  if ts and ts > tonumber(ARGV[3]) then
    return 0
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Put stores p unless the cache already holds a newer ping for the chair.
func (c *Cache) Put(ctx context.Context, p Ping) error {
	return putIfNewer.Run(ctx, c.rdb, []string{latestKey},
		string(p.ChairID), encodePing(p), p.CreatedAt.UnixMicro(),
	).Err()
}

// Get returns the cached pings of chairIDs and the ids it has nothing for.
func (c *Cache) Get(ctx context.Context, chairIDs []types.ID) (map[types.ID]Ping, []types.ID, error) {
	if len(chairIDs) == 0 {
		return map[types.ID]Ping{}, nil, nil
	}
	fields := make([]string, len(chairIDs))
	for i, id := range chairIDs {
		fields[i] = string(id)
	}
	vals, err := c.rdb.HMGet(ctx, latestKey, fields...).Result()
	if err != nil {
		return nil, nil, err
	}
	hits := make(map[types.ID]Ping, len(chairIDs))
	var misses []types.ID
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, chairIDs[i])
			continue
		}
		p, ok := decodePing(chairIDs[i], s)
		if !ok {
			misses = append(misses, chairIDs[i])
			continue
		}
		hits[chairIDs[i]] = p
	}
	return hits, misses, nil
}

// Flush drops every cached ping; used when the database is reinitialized.
func (c *Cache) Flush(ctx context.Context) error {
	return c.rdb.Del(ctx, latestKey).Err()
}
