package rediscache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_cache_hits",
	Help: "Number of cache hits for retail metric lookups",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_cache_misses",
	Help: "Number of cache misses for retail metric lookups",
})

var requestsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_cache_requests_coalesced",
	Help: "Number of lookups coalesced into a pending backend query",
})
