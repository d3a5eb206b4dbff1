package recommend

import (
	"time"

	"computer-club-backend/internal/model"
)

// BusyDevices returns the devices userID has booked with a start time in
// [now, now+horizon).
func BusyDevices(devices []model.Device, userID string, now time.Time, horizon time.Duration) map[string]bool {
	end := now.Add(horizon)
	busy := make(map[string]bool)
	for _, d := range devices {
		for _, b := range d.Bookings {
			if b.UserID != userID || b.StartTime.IsZero() {
				continue
			}
			if !b.StartTime.Before(now) && b.StartTime.Before(end) {
				busy[d.ID] = true
				break
			}
		}
	}
	return busy
}

// FilterAvailable keeps the vectors that are not in busy and carry some booking signal.
func FilterAvailable(vectors []DeviceVector, busy map[string]bool) []DeviceVector {
	kept := make([]DeviceVector, 0, len(vectors))
	for _, v := range vectors {
		if busy[v.DeviceID] || v.IsZero() {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}
