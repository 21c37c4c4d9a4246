package transit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitgrid/transitgrid/internal/transit"
)

func TestInMemoryStopRepository(t *testing.T) {
	ctx := context.Background()
	repo := transit.NewInMemoryStopRepository()

	require.NoError(t, repo.Upsert(ctx, &transit.Stop{ID: "rtm", Name: "Rotterdam Centraal", City: "Rotterdam"}))
	require.NoError(t, repo.Upsert(ctx, &transit.Stop{ID: "ams", Name: "Amsterdam Centraal", City: "Amsterdam"}))
	require.NoError(t, repo.Upsert(ctx, &transit.Stop{ID: "vstop-amsterdam", City: "Amsterdam", IsVirtual: true}))

	stop, err := repo.Get(ctx, "ams")
	require.NoError(t, err)
	assert.Equal(t, "Amsterdam Centraal", stop.Name)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, transit.ErrStopNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ams", all[0].ID, "list is sorted by id")

	byCity, err := repo.ListByCity(ctx, "AMSTERDAM")
	require.NoError(t, err)
	assert.Len(t, byCity, 2, "city match is case-insensitive")

	realCount, err := repo.CountReal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, realCount)

	virtual, err := repo.CountVirtual(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, virtual)

	require.NoError(t, repo.DeleteVirtual(ctx))
	virtual, err = repo.CountVirtual(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, virtual)
}

func TestInMemoryStopRepository_UpsertCopies(t *testing.T) {
	ctx := context.Background()
	repo := transit.NewInMemoryStopRepository()

	original := &transit.Stop{ID: "ams", Name: "Amsterdam Centraal"}
	require.NoError(t, repo.Upsert(ctx, original))

	// Mutating the caller's struct must not leak into the repository.
	original.Name = "changed"

	stop, err := repo.Get(ctx, "ams")
	require.NoError(t, err)
	assert.Equal(t, "Amsterdam Centraal", stop.Name)
}

func TestInMemorySegmentRepository_UpsertByNaturalKey(t *testing.T) {
	ctx := context.Background()
	repo := transit.NewInMemorySegmentRepository()

	segment := &transit.Segment{
		ID:          "s1",
		FromStopID:  "ams",
		ToStopID:    "rtm",
		Transport:   transit.TransportTrain,
		DurationMin: 41,
		Departure:   "08:08",
		RouteID:     "ic-2100",
	}
	require.NoError(t, repo.Upsert(ctx, segment))

	// Same natural key replaces, different departure inserts.
	updated := *segment
	updated.DurationMin = 43
	require.NoError(t, repo.Upsert(ctx, &updated))

	later := *segment
	later.Departure = "09:08"
	require.NoError(t, repo.Upsert(ctx, &later))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	from, err := repo.ListFrom(ctx, "ams")
	require.NoError(t, err)
	assert.Len(t, from, 2)

	from, err = repo.ListFrom(ctx, "rtm")
	require.NoError(t, err)
	assert.Empty(t, from)
}

func TestInMemoryFlightRepository_UpsertByNumberAndDeparture(t *testing.T) {
	ctx := context.Background()
	repo := transit.NewInMemoryFlightRepository()

	departure := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Upsert(ctx, &transit.Flight{Number: "HV5032", Departure: departure, SeatsFree: 40}))
	require.NoError(t, repo.Upsert(ctx, &transit.Flight{Number: "HV5032", Departure: departure, SeatsFree: 12}))
	require.NoError(t, repo.Upsert(ctx, &transit.Flight{Number: "HV5032", Departure: departure.Add(24 * time.Hour)}))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestInMemoryDatasetRepository(t *testing.T) {
	ctx := context.Background()
	repo := transit.NewInMemoryDatasetRepository()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, transit.ErrDatasetNotFound)

	require.NoError(t, repo.Create(ctx, &transit.Dataset{ID: "dst-1", Version: "ds-1"}))
	require.NoError(t, repo.Create(ctx, &transit.Dataset{ID: "dst-2", Version: "ds-2"}))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ds-2", latest.Version)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
