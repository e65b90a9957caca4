package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
}

// force the timezone to the portal's timezone, the attendance table
// has no timezone information of its own and the session expiry math
// breaks if the host machine drifts to another zone
func Now() time.Time {
	return time.Now().In(Location)
}

// Date builds a midnight instant for a portal calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}
