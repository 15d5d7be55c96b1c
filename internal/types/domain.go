package types

import "time"

// GridDescriptor identifies an NWS forecast grid cell.
type GridDescriptor struct {
	Office string
	X      int
	Y      int
}

// LocationConfig is a monitored city and its alert thresholds.
// An inactive location never produces alerts or snapshots.
type LocationConfig struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	NWSOffice        string    `json:"nws_office"`
	GridX            int       `json:"nws_grid_x"`
	GridY            int       `json:"nws_grid_y"`
	AlertTempDelta   float64   `json:"alert_temp_delta"`
	AlertWindowHours int       `json:"alert_window_hours"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Grid returns the forecast grid descriptor for the location.
func (l *LocationConfig) Grid() GridDescriptor {
	return GridDescriptor{Office: l.NWSOffice, X: l.GridX, Y: l.GridY}
}

// ForecastPoint is one hourly forecast value. Sequences are ordered
// ascending by Time and index 0 is "now".
type ForecastPoint struct {
	Time  time.Time `json:"time"`
	TempF float64   `json:"tempF"`
}

// TemperatureSnapshot is an append-only record of a location's temperature
// at the end of an orchestrator cycle.
type TemperatureSnapshot struct {
	ID           int64           `json:"id"`
	LocationID   string          `json:"location_id"`
	RecordedAt   time.Time       `json:"recorded_at"`
	TemperatureF float64         `json:"temperature_f"`
	ForecastData []ForecastPoint `json:"forecast_data,omitempty"`
}

// AlertCheckResult is the Fluctuation Detector's output.
type AlertCheckResult struct {
	ShouldAlert       bool      `json:"shouldAlert"`
	TemperatureChange float64   `json:"temperatureChange"`
	TimeWindow        int       `json:"timeWindow"`
	CurrentTemp       float64   `json:"currentTemp"`
	FutureTemp        float64   `json:"futureTemp"`
	ForecastTime      time.Time `json:"forecastTime"`
}

// DailySummary is the Daily Summary Calculator's output.
type DailySummary struct {
	AverageTemp       float64 `json:"averageTemp"`
	MinTemp           int     `json:"minTemp"`
	MaxTemp           int     `json:"maxTemp"`
	TemperatureChange float64 `json:"temperatureChange"`
	YesterdayAverage  float64 `json:"yesterdayAverage"`
}

// AlertEvent records that a detector fired for a location. Only Processed
// ever changes after insert.
type AlertEvent struct {
	ID          string            `json:"id"`
	LocationID  string            `json:"location_id"`
	Kind        AlertKind         `json:"kind"`
	Measurement MeasurementData   `json:"measurement_data"`
	Threshold   ThresholdSnapshot `json:"threshold_snapshot"`
	TriggeredAt time.Time         `json:"triggered_at"`
	Processed   bool              `json:"processed"`
}

// MeasurementData holds the detector output that caused an AlertEvent.
// Exactly one of the fields is set, matching the event kind.
type MeasurementData struct {
	Fluctuation *AlertCheckResult `json:"fluctuation,omitempty"`
	Summary     *DailySummary     `json:"summary,omitempty"`
}

// ThresholdSnapshot captures the location thresholds in force when an
// event fired. Daily summaries carry an empty snapshot.
type ThresholdSnapshot struct {
	TempDelta   float64 `json:"tempDelta,omitempty"`
	WindowHours int     `json:"windowHours,omitempty"`
}

// Building is a monitored property inside a city.
type Building struct {
	ID       string `json:"id"`
	CityID   string `json:"city_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	IsPaused bool   `json:"is_paused"`
}

// Receiving reports whether the building should get new messages.
func (b *Building) Receiving() bool {
	return b.IsActive && !b.IsPaused
}

// Recipient is a person at a building who receives alerts.
type Recipient struct {
	ID         string            `json:"id"`
	BuildingID string            `json:"building_id"`
	Name       string            `json:"name"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Preference ChannelPreference `json:"preference"`
	IsActive   bool              `json:"is_active"`
}

// Channels expands the recipient's preference into the concrete channels
// that have a usable address.
func (r *Recipient) Channels() []Channel {
	var out []Channel
	if (r.Preference == PreferEmail || r.Preference == PreferBoth) && r.Email != "" {
		out = append(out, ChannelEmail)
	}
	if (r.Preference == PreferSMS || r.Preference == PreferBoth) && r.Phone != "" {
		out = append(out, ChannelSMS)
	}
	return out
}

// DispatchedMessage is a message queued for (or delivered to) a recipient.
// A failed message is terminal; warnings are created as new messages.
type DispatchedMessage struct {
	ID             string         `json:"id"`
	AlertEventID   string         `json:"alert_event_id,omitempty"`
	BuildingID     string         `json:"building_id"`
	RecipientID    string         `json:"recipient_id"`
	Kind           MessageKind    `json:"kind"`
	Channel        Channel        `json:"channel"`
	Content        string         `json:"content"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	Delivered      bool           `json:"delivered"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// EffectiveSentAt returns SentAt, or CreatedAt when the message was never
// dispatched.
func (m *DispatchedMessage) EffectiveSentAt() time.Time {
	if m.SentAt != nil && !m.SentAt.IsZero() {
		return *m.SentAt
	}
	return m.CreatedAt
}

// ComplianceUpload is evidence uploaded in response to a message.
// IsCompliant is derived from UploadedAt and the message's sent time.
type ComplianceUpload struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	BuildingID  string    `json:"building_id"`
	UploadedAt  time.Time `json:"uploaded_at"`
	PhotoRef    string    `json:"photo_ref,omitempty"`
	WindowHours float64   `json:"compliance_window_hours"`
	IsCompliant bool      `json:"is_compliant"`
}

// ComplianceStatus is the Compliance Window Evaluator's output.
type ComplianceStatus struct {
	BuildingID        string     `json:"buildingId"`
	MessageID         string     `json:"messageId"`
	IsCompliant       bool       `json:"isCompliant"`
	HoursSinceMessage float64    `json:"hoursSinceMessage"`
	HasUpload         bool       `json:"hasUpload"`
	UploadTime        *time.Time `json:"uploadTime,omitempty"`
}

// UtilityBill is a building's metered consumption for one month.
// Unique per (BuildingID, Month, Year).
type UtilityBill struct {
	ID                string    `json:"id"`
	BuildingID        string    `json:"building_id"`
	Month             int       `json:"month"`
	Year              int       `json:"year"`
	ElectricKWH       *float64  `json:"electric_kwh,omitempty"`
	GasTherms         *float64  `json:"gas_therms,omitempty"`
	FuelOilGallons    *float64  `json:"fuel_oil_gallons,omitempty"`
	DistrictSteamMBTU *float64  `json:"district_steam_mbtu,omitempty"`
	TotalKBTU         float64   `json:"total_kbtu"`
	UploadedBy        string    `json:"uploaded_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DegreeDayRecord holds a city's heating and cooling degree days for one
// month. Unique per (CityID, Month, Year).
type DegreeDayRecord struct {
	ID                string    `json:"id"`
	CityID            string    `json:"city_id"`
	Month             int       `json:"month"`
	Year              int       `json:"year"`
	HeatingDegreeDays float64   `json:"heating_degree_days"`
	CoolingDegreeDays float64   `json:"cooling_degree_days"`
	UploadedBy        string    `json:"uploaded_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EnergyBaseline is the historical consumption per degree day for one
// building, calendar month and baseline type. A recompute replaces it.
type EnergyBaseline struct {
	ID                         string       `json:"id"`
	BuildingID                 string       `json:"building_id"`
	Month                      int          `json:"month"`
	Type                       BaselineType `json:"baseline_type"`
	AvgConsumptionPerDegreeDay float64      `json:"avg_consumption_per_degree_day"`
	PeriodStart                time.Time    `json:"baseline_period_start"`
	PeriodEnd                  time.Time    `json:"baseline_period_end"`
	DataPoints                 int          `json:"data_points"`
	CalculatedAt               time.Time    `json:"calculated_at"`
}

// MonthlyComparison is one building-month normalized against its baselines.
type MonthlyComparison struct {
	Month                     int          `json:"month"`
	Year                      int          `json:"year"`
	CurrentConsumptionPerHDD  float64      `json:"currentConsumptionPerHDD"`
	BaselineConsumptionPerHDD float64      `json:"baselineConsumptionPerHDD"`
	CurrentConsumptionPerCDD  float64      `json:"currentConsumptionPerCDD"`
	BaselineConsumptionPerCDD float64      `json:"baselineConsumptionPerCDD"`
	SavingsPercentage         float64      `json:"savingsPercentage"`
	SavingsKBTU               float64      `json:"savingsKBTU"`
	BaselineUsed              BaselineType `json:"baselineUsed,omitempty"`
	ElectricKWH               *float64     `json:"electricKWH,omitempty"`
	GasTherms                 *float64     `json:"gasTherms,omitempty"`
	FuelOilGallons            *float64     `json:"fuelOilGallons,omitempty"`
	DistrictSteamMBTU         *float64     `json:"districtSteamMBTU,omitempty"`
	TotalKBTU                 float64      `json:"totalKBTU"`
	HDD                       float64      `json:"hdd"`
	CDD                       float64      `json:"cdd"`
}

// EnergyReport persists a MonthlyComparison for a building-month.
// Unique per (BuildingID, Month, Year).
type EnergyReport struct {
	ID            string            `json:"id"`
	BuildingID    string            `json:"building_id"`
	Month         int               `json:"month"`
	Year          int               `json:"year"`
	UtilityBillID string            `json:"utility_bill_id,omitempty"`
	DegreeDaysID  string            `json:"degree_days_id,omitempty"`
	Comparison    MonthlyComparison `json:"comparison"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// MessageTemplate is a city-specific override of a built-in message text.
type MessageTemplate struct {
	ID        string      `json:"id"`
	CityID    string      `json:"city_id"`
	Kind      MessageKind `json:"template_type"`
	Subject   string      `json:"subject,omitempty"`
	Content   string      `json:"content"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
