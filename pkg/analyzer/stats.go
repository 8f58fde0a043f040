package analyzer

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// stats is a snapshot of time and allocation taken at the start of a pass
type stats struct {
	start    time.Time
	startMem uint64
	startGc  uint32
}

func newStats() *stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &stats{time.Now(), m.TotalAlloc, m.NumGC}
}

// log reports the time and memory spent since the snapshot
func (s *stats) log(pass string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	alloc := (m.TotalAlloc - s.startMem) / 1024 / 1024
	log.Debugf("%s took %0.3fs using %v Mb (%v GC events)", pass, time.Since(s.start).Seconds(), alloc, m.NumGC-s.startGc)
}
