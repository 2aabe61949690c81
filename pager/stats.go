package pager

import "time"

type Stats struct {
	Pages    uint32
	Capacity int
	Cached   int
	Dirty    int

	Hits        int
	Misses      int
	Loads       int
	Allocations int
	Flushes     int

	Opened time.Time
}
