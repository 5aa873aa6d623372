// README: Driver registry backed by Redis GEO and hashes.
package location

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/types"
)

const (
	driverGeoKey    = "drivers:geo"
	driverRecPrefix = "drivers:rec:%s"
	driverIndexKey  = "drivers:index"
)

// RedisRegistry mirrors the Registry contract onto Redis so multiple
// processes can share one driver pool. Positions live in a GEO set,
// the rest of the record in a JSON string per driver.
type RedisRegistry struct {
	redis *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{redis: client}
}

type redisRecord struct {
	Name      string  `json:"name"`
	Available bool    `json:"available"`
	Vehicle   Vehicle `json:"vehicle"`
	HasPos    bool    `json:"has_pos"`
}

func (r *RedisRegistry) Upsert(ctx context.Context, rec DriverRecord) error {
	raw, err := json.Marshal(redisRecord{
		Name:      rec.Name,
		Available: rec.Available,
		Vehicle:   rec.Vehicle,
		HasPos:    rec.Position != nil,
	})
	if err != nil {
		return err
	}
	pipe := r.redis.Pipeline()
	pipe.Set(ctx, recKey(rec.ID), raw, 0)
	pipe.SAdd(ctx, driverIndexKey, string(rec.ID))
	if rec.Position != nil {
		pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
			Name:      string(rec.ID),
			Longitude: rec.Position.Lng,
			Latitude:  rec.Position.Lat,
		})
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) SetPosition(ctx context.Context, id types.ID, pos types.Point) error {
	rec, ok, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		rec = DriverRecord{ID: id}
	}
	rec.Position = &pos
	return r.Upsert(ctx, rec)
}

func (r *RedisRegistry) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	rec, ok, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		rec = DriverRecord{ID: id}
	}
	rec.Available = available
	return r.Upsert(ctx, rec)
}

func (r *RedisRegistry) Remove(ctx context.Context, id types.ID) error {
	pipe := r.redis.Pipeline()
	pipe.Del(ctx, recKey(id))
	pipe.SRem(ctx, driverIndexKey, string(id))
	pipe.ZRem(ctx, driverGeoKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) Get(ctx context.Context, id types.ID) (DriverRecord, bool, error) {
	raw, err := r.redis.Get(ctx, recKey(id)).Result()
	if err == redis.Nil {
		return DriverRecord{}, false, nil
	}
	if err != nil {
		return DriverRecord{}, false, err
	}
	var rr redisRecord
	if err := json.Unmarshal([]byte(raw), &rr); err != nil {
		return DriverRecord{}, false, err
	}
	rec := DriverRecord{ID: id, Name: rr.Name, Available: rr.Available, Vehicle: rr.Vehicle}
	if rr.HasPos {
		pos, err := r.redis.GeoPos(ctx, driverGeoKey, string(id)).Result()
		if err != nil {
			return DriverRecord{}, false, err
		}
		if len(pos) == 1 && pos[0] != nil {
			rec.Position = &types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}
		}
	}
	return rec, true, nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context) ([]DriverRecord, error) {
	ids, err := r.redis.SMembers(ctx, driverIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DriverRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := r.Get(ctx, types.ID(id))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func recKey(id types.ID) string {
	return fmt.Sprintf(driverRecPrefix, string(id))
}
