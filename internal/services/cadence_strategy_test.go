package services

import (
	"testing"
	"time"

	"patrimonio/internal/core"
)

func TestDailyChecker_IsDue(t *testing.T) {
	checker := DailyChecker{}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		lastProjection time.Time
		want           bool
	}{
		{"never projected - is due", time.Time{}, true},
		{"projected today - not due", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), false},
		{"projected yesterday - is due", time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastProjection, now, time.Time{}); got != tt.want {
				t.Errorf("DailyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklyChecker_IsDue(t *testing.T) {
	checker := WeeklyChecker{}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		lastProjection time.Time
		want           bool
	}{
		{"never projected - is due", time.Time{}, true},
		{"projected 3 days ago - not due", now.AddDate(0, 0, -3), false},
		{"projected exactly 7 days ago - is due", now.AddDate(0, 0, -7), true},
		{"projected 10 days ago - is due", now.AddDate(0, 0, -10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastProjection, now, time.Time{}); got != tt.want {
				t.Errorf("WeeklyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name           string
		lastProjection time.Time
		now            time.Time
		anchor         time.Time
		want           bool
	}{
		{
			name: "never projected - is due",
			now:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name:           "already projected this month",
			lastProjection: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
			now:            time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
			anchor:         time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
			want:           false,
		},
		{
			name:           "new month before anchor day",
			lastProjection: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			now:            time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
			anchor:         time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
			want:           false,
		},
		{
			name:           "new month on anchor day",
			lastProjection: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			now:            time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			anchor:         time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
			want:           true,
		},
		{
			name:           "anchor on the 31st clamps to end of February",
			lastProjection: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			now:            time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			anchor:         time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			want:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDue(tt.lastProjection, tt.now, tt.anchor); got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeverChecker_IsDue(t *testing.T) {
	if (NeverChecker{}).IsDue(time.Time{}, time.Now(), time.Time{}) {
		t.Error("NeverChecker should never be due")
	}
}

func TestGetCadenceChecker(t *testing.T) {
	tests := []struct {
		cadence core.RefreshCadence
		wantErr bool
	}{
		{core.Never, false},
		{core.Daily, false},
		{core.Weekly, false},
		{core.Monthly, false},
		{"", false},
		{"hourly", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			checker, err := GetCadenceChecker(tt.cadence)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetCadenceChecker(%q) error = %v, wantErr %v", tt.cadence, err, tt.wantErr)
			}
			if !tt.wantErr && checker == nil {
				t.Error("expected a checker")
			}
		})
	}
}
