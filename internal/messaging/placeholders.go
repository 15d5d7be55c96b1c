// Package messaging renders alert, summary and warning texts from per-city
// templates, queues one message per recipient channel and delivers queued
// messages through the email and SMS providers.
package messaging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tempguard/internal/types"
)

// Placeholder names a {{value}} slot in a message template.
type Placeholder string

const (
	PlaceholderTemperatureChange Placeholder = "temperatureChange"
	PlaceholderTimeWindow        Placeholder = "timeWindow"
	PlaceholderCurrentTemp       Placeholder = "currentTemp"
	PlaceholderFutureTemp        Placeholder = "futureTemp"
	PlaceholderAverageTemp       Placeholder = "averageTemp"
	PlaceholderMaxTemp           Placeholder = "maxTemp"
	PlaceholderMinTemp           Placeholder = "minTemp"
	PlaceholderHoursAgo          Placeholder = "hoursAgo"
	PlaceholderUploadURL         Placeholder = "uploadUrl"
	PlaceholderCityName          Placeholder = "cityName"
	PlaceholderBuildingName      Placeholder = "buildingName"
)

// TemplateVars supplies the value for each placeholder of a render.
type TemplateVars map[Placeholder]string

var allowedPlaceholders = map[types.MessageKind][]Placeholder{
	types.MessageAlert: {
		PlaceholderTemperatureChange, PlaceholderTimeWindow, PlaceholderCurrentTemp,
		PlaceholderFutureTemp, PlaceholderUploadURL, PlaceholderCityName, PlaceholderBuildingName,
	},
	types.MessageDailySummary: {
		PlaceholderAverageTemp, PlaceholderMaxTemp, PlaceholderMinTemp,
		PlaceholderTemperatureChange, PlaceholderUploadURL, PlaceholderCityName, PlaceholderBuildingName,
	},
	types.MessageWarning: {
		PlaceholderHoursAgo, PlaceholderUploadURL, PlaceholderCityName, PlaceholderBuildingName,
	},
}

// AllowedPlaceholders returns the placeholders a template of kind may use.
func AllowedPlaceholders(kind types.MessageKind) []Placeholder {
	return append([]Placeholder(nil), allowedPlaceholders[kind]...)
}

func allows(kind types.MessageKind, p Placeholder) bool {
	for _, a := range allowedPlaceholders[kind] {
		if a == p {
			return true
		}
	}
	return false
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]*)\s*\}\}`)

// defaultTemplates are used when a city has no active template of its own.
var defaultTemplates = map[types.MessageKind]string{
	types.MessageAlert: "⚠️ SUDDEN TEMPERATURE ALERT\n\n" +
		"Temperature is expected to change by {{temperatureChange}}°F " +
		"in the next {{timeWindow}} hours " +
		"({{currentTemp}}°F → {{futureTemp}}°F).\n\n" +
		"Please adjust heating/cooling settings accordingly.",
	types.MessageDailySummary: "📊 Daily Temperature Summary\n\n" +
		"Average: {{averageTemp}}°F\n" +
		"High: {{maxTemp}}°F\n" +
		"Low: {{minTemp}}°F\n" +
		"Change from yesterday: {{temperatureChange}}°F\n\n" +
		"Please confirm your settings adjustment.",
	types.MessageWarning: "⚠️ COMPLIANCE WARNING\n\n" +
		"You have not uploaded a compliance photo for the message sent {{hoursAgo}} hours ago.\n\n" +
		"Please upload your photo immediately. Failure to comply may void your guarantee.\n\n" +
		"Upload link: {{uploadUrl}}",
}

// DefaultTemplate returns the built-in text for kind.
func DefaultTemplate(kind types.MessageKind) string {
	return defaultTemplates[kind]
}

// ValidateTemplate checks that every placeholder in content is known and
// allowed for kind.
func ValidateTemplate(kind types.MessageKind, content string) error {
	if !kind.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidKind,
			fmt.Sprintf("unknown message kind %q", kind), nil)
	}
	var bad []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !allows(kind, Placeholder(m[1])) {
			bad = append(bad, m[1])
		}
	}
	if len(bad) > 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationPlaceholder,
			fmt.Sprintf("template uses placeholders not allowed for %s messages", kind), nil,
			map[string]any{"placeholders": bad, "allowed": AllowedPlaceholders(kind)})
	}
	return nil
}

// Render substitutes vars into content. It fails when content uses a
// placeholder the kind does not allow, or when vars carries a value for
// one. Allowed placeholders without a value render as empty text.
func Render(kind types.MessageKind, content string, vars TemplateVars) (string, error) {
	if err := ValidateTemplate(kind, content); err != nil {
		return "", err
	}
	var extra []string
	for p := range vars {
		if !allows(kind, p) {
			extra = append(extra, string(p))
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return "", types.NewAppErrorWithDetails(types.ErrCodeValidationPlaceholder,
			fmt.Sprintf("values supplied for placeholders not allowed for %s messages", kind), nil,
			map[string]any{"placeholders": extra})
	}

	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		return vars[Placeholder(name)]
	}), nil
}
