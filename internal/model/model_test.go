package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"TrackerInfo", &TrackerInfo{}, "tracker_infos"},
		{"TrackerPerformance", &TrackerPerformance{}, "tracker_performances"},
		{"Route", &Route{}, "routes"},
		{"RoutePoint", &RoutePoint{}, "route_points"},
		{"TrackerEvent", &TrackerEvent{}, "tracker_events"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelListsMatch(t *testing.T) {
	// the SQLite list must migrate the same schema as the Postgres one
	assert.Equal(t, len(DatabaseModels), len(DatabaseModelsSQLite))
	for i := range DatabaseModels {
		assert.IsType(t, DatabaseModels[i], DatabaseModelsSQLite[i])
	}
}
