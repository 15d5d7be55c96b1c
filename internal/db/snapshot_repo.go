package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tempguard/internal/types"
)

// forecastCodec stores a snapshot's forecast points as zstd-compressed JSON
// in the forecast_data BYTEA column.
type forecastCodec struct {
	encoder     *zstd.Encoder
	decoderPool sync.Pool
}

func newForecastCodec() *forecastCodec {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}
	return &forecastCodec{
		encoder: enc,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
}

func (c *forecastCodec) encode(points []types.ForecastPoint) ([]byte, error) {
	if len(points) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return nil, err
	}
	return c.encoder.EncodeAll(raw, nil), nil
}

func (c *forecastCodec) decode(data []byte) ([]types.ForecastPoint, error) {
	if len(data) == 0 {
		return nil, nil
	}
	d := c.decoderPool.Get().(*zstd.Decoder)
	defer c.decoderPool.Put(d)

	raw, err := d.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	var points []types.ForecastPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// SnapshotRepository appends and reads temperature_snapshots. Rows are never
// updated.
type SnapshotRepository struct {
	db    DBTX
	codec *forecastCodec
}

func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db, codec: newForecastCodec()}
}

// Create inserts the snapshot and sets its ID. A zero RecordedAt takes the
// database clock.
func (r *SnapshotRepository) Create(ctx context.Context, s *types.TemperatureSnapshot) error {
	blob, err := r.codec.encode(s.ForecastData)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode forecast data", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO temperature_snapshots (location_id, recorded_at, temperature_f, forecast_data)
		 VALUES ($1, COALESCE($2, NOW()), $3, $4)
		 RETURNING id, recorded_at`,
		s.LocationID,
		nilIfZeroTime(s.RecordedAt),
		s.TemperatureF,
		blob,
	).Scan(&s.ID, &s.RecordedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save temperature snapshot", err)
	}
	return nil
}

// ListRecent returns up to limit snapshots for the location recorded at or
// after since, newest first.
func (r *SnapshotRepository) ListRecent(ctx context.Context, locationID string, since time.Time, limit int) ([]types.TemperatureSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, location_id, recorded_at, temperature_f, forecast_data
		 FROM temperature_snapshots
		 WHERE location_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at DESC
		 LIMIT $3`,
		locationID, since, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query temperature snapshots", err)
	}
	defer rows.Close()

	var out []types.TemperatureSnapshot
	for rows.Next() {
		var (
			s    types.TemperatureSnapshot
			blob []byte
		)
		if err := rows.Scan(&s.ID, &s.LocationID, &s.RecordedAt, &s.TemperatureF, &blob); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan temperature snapshot", err)
		}
		if s.ForecastData, err = r.codec.decode(blob); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalCorruptData,
				fmt.Sprintf("snapshot %d has unreadable forecast data", s.ID), err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating temperature snapshots", err)
	}
	return out, nil
}
