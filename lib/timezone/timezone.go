package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
}

// output file names and run timestamps use the portal's local time, so a
// scrape started at night on a UTC host still lands on the right day.
func Now() time.Time {
	return time.Now().In(Location)
}
