package domain

type CacheMetrics struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// MaintenanceReport summarizes one cache maintenance run.
type MaintenanceReport struct {
	ClearedForLowHitRate bool    `json:"cleared_for_low_hit_rate"`
	EvictedForSize       int     `json:"evicted_for_size"`
	UsedMemoryMB         float64 `json:"used_memory_mb"`
	HitRate              float64 `json:"hit_rate"`
}
