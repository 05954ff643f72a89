package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "every minute", schedule: "* * * * *", wantErr: false},
		{name: "daily at 5:30", schedule: "30 5 * * *", wantErr: false},
		{name: "every other minute", schedule: "*/2 * * * *", wantErr: false},
		{name: "weekdays", schedule: "30 9 * * 1-5", wantErr: false},
		{name: "empty", schedule: "", wantErr: true},
		{name: "too few fields", schedule: "* * *", wantErr: true},
		{name: "minute out of range", schedule: "61 * * * *", wantErr: true},
		{name: "garbage", schedule: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTimezone(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "utc", timezone: "UTC", wantErr: false},
		{name: "iana name", timezone: "Asia/Tokyo", wantErr: false},
		{name: "empty", timezone: "", wantErr: true},
		{name: "unknown zone", timezone: "Not/AZone", wantErr: true},
		{name: "offset instead of name", timezone: "+09:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimezone(tt.timezone)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		min      time.Duration
		max      time.Duration
		wantErr  string
	}{
		{
			name:     "within range",
			duration: 30 * time.Minute,
			min:      time.Second,
			max:      time.Hour,
		},
		{
			name:     "below minimum",
			duration: 500 * time.Millisecond,
			min:      time.Second,
			max:      time.Hour,
			wantErr:  "below minimum",
		},
		{
			name:     "above maximum",
			duration: 2 * time.Hour,
			min:      time.Second,
			max:      time.Hour,
			wantErr:  "exceeds maximum",
		},
		{
			name:     "inverted range",
			duration: time.Minute,
			min:      time.Hour,
			max:      time.Second,
			wantErr:  "invalid range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDuration(tt.duration, tt.min, tt.max)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIntRange(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		min     int
		max     int
		wantErr string
	}{
		{name: "within range", value: 5, min: 1, max: 10},
		{name: "at lower bound", value: 1, min: 1, max: 10},
		{name: "at upper bound", value: 10, min: 1, max: 10},
		{name: "below minimum", value: 0, min: 1, max: 10, wantErr: "below minimum"},
		{name: "above maximum", value: 11, min: 1, max: 10, wantErr: "exceeds maximum"},
		{name: "inverted range", value: 5, min: 10, max: 1, wantErr: "invalid range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange(tt.value, tt.min, tt.max)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Second))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}
