package messagebus

import "time"

// nowFunc is indirected so tests can control timestamps deterministically.
var nowFunc = time.Now
