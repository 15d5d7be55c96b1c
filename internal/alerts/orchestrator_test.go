package alerts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempguard/internal/types"
)

// --- Fakes ---

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeLocations struct {
	byID   map[string]*types.LocationConfig
	active []*types.LocationConfig
	err    error
}

func (f *fakeLocations) GetByID(_ context.Context, id string) (*types.LocationConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func (f *fakeLocations) ListActive(context.Context) ([]*types.LocationConfig, error) {
	return f.active, f.err
}

type listCall struct {
	locationID string
	since      time.Time
	limit      int
}

type fakeSnapshots struct {
	created   []types.TemperatureSnapshot
	recent    []types.TemperatureSnapshot
	listCalls []listCall
	createErr error
}

func (f *fakeSnapshots) Create(_ context.Context, s *types.TemperatureSnapshot) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *s)
	return nil
}

func (f *fakeSnapshots) ListRecent(_ context.Context, locationID string, since time.Time, limit int) ([]types.TemperatureSnapshot, error) {
	f.listCalls = append(f.listCalls, listCall{locationID, since, limit})
	return f.recent, nil
}

type fakeEvents struct {
	created   []types.AlertEvent
	processed []string
}

func (f *fakeEvents) Create(_ context.Context, e *types.AlertEvent) error {
	f.created = append(f.created, *e)
	return nil
}

func (f *fakeEvents) MarkProcessed(_ context.Context, id string) error {
	f.processed = append(f.processed, id)
	return nil
}

type fakeWeather struct {
	byOffice map[string][]types.ForecastPoint
	failFor  map[string]error
	calls    map[string]int
}

func (f *fakeWeather) HourlyForecast(_ context.Context, grid types.GridDescriptor) ([]types.ForecastPoint, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[grid.Office]++
	if err := f.failFor[grid.Office]; err != nil {
		return nil, err
	}
	return f.byOffice[grid.Office], nil
}

type fakeQueuer struct {
	queued []string
	err    error
}

func (f *fakeQueuer) QueueForAlert(_ context.Context, e *types.AlertEvent) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queued = append(f.queued, e.ID)
	return []string{"msg-" + e.ID}, nil
}

type fakeSender struct {
	calls int
	err   error
}

func (f *fakeSender) SendPending(context.Context) (*types.DispatchSummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.DispatchSummary{Processed: 1, Sent: 1}, nil
}

type fakeCycleMetrics struct {
	cycle                    string
	checked, fired, failures int
}

func (f *fakeCycleMetrics) RecordCycle(_ context.Context, cycle string, checked, fired, failures int) {
	f.cycle, f.checked, f.fired, f.failures = cycle, checked, fired, failures
}

type harness struct {
	svc       *Service
	locations *fakeLocations
	snapshots *fakeSnapshots
	events    *fakeEvents
	weather   *fakeWeather
	queuer    *fakeQueuer
	sender    *fakeSender
	metrics   *fakeCycleMetrics
}

var now = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newHarness(locs ...*types.LocationConfig) *harness {
	h := &harness{
		locations: &fakeLocations{byID: map[string]*types.LocationConfig{}, active: locs},
		snapshots: &fakeSnapshots{},
		events:    &fakeEvents{},
		weather:   &fakeWeather{byOffice: map[string][]types.ForecastPoint{}, failFor: map[string]error{}},
		queuer:    &fakeQueuer{},
		sender:    &fakeSender{},
		metrics:   &fakeCycleMetrics{},
	}
	for _, l := range locs {
		h.locations.byID[l.ID] = l
	}
	seq := 0
	h.svc = NewService(Config{
		Locations: h.locations,
		Snapshots: h.snapshots,
		Events:    h.events,
		Weather:   h.weather,
		Queuer:    h.queuer,
		Sender:    h.sender,
		Metrics:   h.metrics,
		Clock:     fixedClock{now},
		NewID: func() string {
			seq++
			return fmt.Sprintf("evt-%d", seq)
		},
	})
	return h
}

func cityAt(id, office string) *types.LocationConfig {
	l := location(5, 6)
	l.ID, l.NWSOffice = id, office
	return l
}

// --- Tests ---

func TestRunFluctuationCycle_FiresQueuesAndSnapshots(t *testing.T) {
	hot, calm := cityAt("hot", "AAA"), cityAt("calm", "BBB")
	h := newHarness(hot, calm)
	h.weather.byOffice["AAA"] = series(50, 51, 52, 54, 55, 57, 58, 60)
	h.weather.byOffice["BBB"] = flat(24, 50)

	report, err := h.svc.RunFluctuationCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CycleCheckAlerts, report.Cycle)
	assert.Equal(t, 2, report.LocationsChecked)
	assert.Equal(t, 1, report.AlertsFired)
	assert.Equal(t, []string{"evt-1"}, report.AlertIDs)
	assert.Zero(t, report.Failures)
	require.NotNil(t, report.Dispatch)
	assert.Equal(t, 1, h.sender.calls)

	require.Len(t, h.events.created, 1)
	evt := h.events.created[0]
	assert.Equal(t, "hot", evt.LocationID)
	assert.Equal(t, types.AlertSuddenFluctuation, evt.Kind)
	require.NotNil(t, evt.Measurement.Fluctuation)
	assert.Equal(t, 8.0, evt.Measurement.Fluctuation.TemperatureChange)
	assert.Equal(t, types.ThresholdSnapshot{TempDelta: 5, WindowHours: 6}, evt.Threshold)

	assert.Equal(t, []string{"evt-1"}, h.queuer.queued)
	assert.Equal(t, []string{"evt-1"}, h.events.processed)

	// One fetch per location, and every location gets a snapshot.
	assert.Equal(t, map[string]int{"AAA": 1, "BBB": 1}, h.weather.calls)
	require.Len(t, h.snapshots.created, 2)
	assert.Equal(t, 50.0, h.snapshots.created[0].TemperatureF)
	assert.Equal(t, now, h.snapshots.created[0].RecordedAt)
	assert.Len(t, h.snapshots.created[0].ForecastData, 8)

	assert.Equal(t, &fakeCycleMetrics{cycle: CycleCheckAlerts, checked: 2, fired: 1}, h.metrics)
}

func TestRunFluctuationCycle_IsolatesLocationFailures(t *testing.T) {
	broken, ok := cityAt("broken", "AAA"), cityAt("ok", "BBB")
	h := newHarness(broken, ok)
	h.weather.failFor["AAA"] = errors.New("upstream down")
	h.weather.byOffice["BBB"] = series(50, 51, 52, 54, 55, 57, 58)

	report, err := h.svc.RunFluctuationCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.LocationsChecked)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 1, report.AlertsFired)
	require.Len(t, h.snapshots.created, 1)
	assert.Equal(t, "ok", h.snapshots.created[0].LocationID)
}

func TestRunFluctuationCycle_QueueFailureLeavesEventUnprocessed(t *testing.T) {
	h := newHarness(cityAt("hot", "AAA"))
	h.weather.byOffice["AAA"] = series(50, 51, 52, 54, 55, 57, 58)
	h.queuer.err = errors.New("db gone")

	report, err := h.svc.RunFluctuationCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.AlertsFired)
	assert.Equal(t, 1, report.Failures)
	assert.Len(t, h.events.created, 1)
	assert.Empty(t, h.events.processed)
	assert.Len(t, h.snapshots.created, 1, "snapshot is saved even when queueing fails")
}

func TestRunFluctuationCycle_SnapshotFailureCounted(t *testing.T) {
	h := newHarness(cityAt("calm", "AAA"))
	h.weather.byOffice["AAA"] = flat(24, 50)
	h.snapshots.createErr = errors.New("disk full")

	report, err := h.svc.RunFluctuationCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failures)
}

func TestRunFluctuationCycle_ListErrorAborts(t *testing.T) {
	h := newHarness()
	h.locations.err = errors.New("connection refused")

	_, err := h.svc.RunFluctuationCycle(context.Background())
	require.Error(t, err)
	assert.Zero(t, h.sender.calls)
}

func TestRunFluctuationCycle_SendPendingErrorIsLogged(t *testing.T) {
	h := newHarness()
	h.sender.err = errors.New("smtp down")

	report, err := h.svc.RunFluctuationCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Dispatch)
	assert.Equal(t, []string{}, report.AlertIDs)
}

func TestRunDailySummaryCycle_ReadsSnapshotsBeforeWriting(t *testing.T) {
	h := newHarness(cityAt("c1", "AAA"))
	h.weather.byOffice["AAA"] = flat(24, 50)
	h.snapshots.recent = []types.TemperatureSnapshot{{TemperatureF: 45}}

	report, err := h.svc.RunDailySummaryCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CycleDailySummary, report.Cycle)
	assert.Equal(t, 1, report.AlertsFired)
	require.Len(t, h.snapshots.listCalls, 1)
	assert.Equal(t, listCall{"c1", now.Add(-48 * time.Hour), 24}, h.snapshots.listCalls[0])

	require.Len(t, h.events.created, 1)
	evt := h.events.created[0]
	assert.Equal(t, types.AlertDailySummary, evt.Kind)
	require.NotNil(t, evt.Measurement.Summary)
	assert.Equal(t, 5.0, evt.Measurement.Summary.TemperatureChange)
	assert.Equal(t, types.ThresholdSnapshot{}, evt.Threshold)
	assert.Len(t, h.snapshots.created, 1)
}

func TestRunDailySummaryCycle_ShortForecastStillSnapshots(t *testing.T) {
	h := newHarness(cityAt("c1", "AAA"))
	h.weather.byOffice["AAA"] = flat(12, 50)

	report, err := h.svc.RunDailySummaryCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.AlertsFired)
	assert.Len(t, h.snapshots.created, 1)
}

func TestService_CheckFluctuation(t *testing.T) {
	active := cityAt("c1", "AAA")
	inactive := cityAt("c2", "BBB")
	inactive.IsActive = false
	h := newHarness(active)
	h.locations.byID["c2"] = inactive
	h.weather.byOffice["AAA"] = series(50, 51, 52, 54, 55, 57, 58)

	got, err := h.svc.CheckFluctuation(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ShouldAlert)

	got, err = h.svc.CheckFluctuation(context.Background(), "c2")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, h.weather.calls["BBB"], "inactive locations are not fetched")

	got, err = h.svc.CheckFluctuation(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_ComputeDailySummary(t *testing.T) {
	h := newHarness(cityAt("c1", "AAA"))
	h.weather.byOffice["AAA"] = flat(24, 50)

	got, err := h.svc.ComputeDailySummary(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, got.TemperatureChange)
}

func TestService_Forecast(t *testing.T) {
	h := newHarness(cityAt("c1", "AAA"))
	h.weather.byOffice["AAA"] = flat(24, 50)

	got, err := h.svc.Forecast(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "AAA", got.Office)
	assert.Len(t, got.Forecast, 24)

	_, err = h.svc.Forecast(context.Background(), "nope")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundLocation, appErr.Code)
}
