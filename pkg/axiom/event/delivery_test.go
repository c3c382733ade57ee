package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/event"
)

func TestDeliveryRecord_ShouldRetry(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		lastAttempt time.Time
		maxAttempts int
		delay       time.Duration
		want        bool
	}{
		{
			name:        "fresh record",
			attempts:    0,
			maxAttempts: 3,
			delay:       time.Second,
			want:        true,
		},
		{
			name:        "attempts exhausted",
			attempts:    3,
			lastAttempt: time.Now().Add(-time.Hour),
			maxAttempts: 3,
			delay:       time.Second,
			want:        false,
		},
		{
			name:        "delay not yet elapsed",
			attempts:    1,
			lastAttempt: time.Now(),
			maxAttempts: 3,
			delay:       time.Hour,
			want:        false,
		},
		{
			name:        "delay elapsed",
			attempts:    1,
			lastAttempt: time.Now().Add(-2 * time.Second),
			maxAttempts: 3,
			delay:       time.Second,
			want:        true,
		},
		{
			name:        "widened policy reopens window",
			attempts:    3,
			lastAttempt: time.Now().Add(-time.Hour),
			maxAttempts: 5,
			delay:       time.Second,
			want:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &event.DeliveryRecord{
				Attempts:    tt.attempts,
				LastAttempt: tt.lastAttempt,
			}
			assert.Equal(t, tt.want, rec.ShouldRetry(tt.maxAttempts, tt.delay))
		})
	}
}
