package retail

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var citiesServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_cities_served",
	Help: "Number of city list responses served",
})

var cityMetricsServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_city_metrics_served",
	Help: "Number of city metrics responses served",
})

var neighborhoodMetricsServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_neighborhood_metrics_served",
	Help: "Number of neighborhood metrics responses served",
})

var retailerMetricsServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_retailer_metrics_served",
	Help: "Number of retailer metrics responses served",
})

var retailerSearchesServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "oja_retailer_searches_served",
	Help: "Number of retailer search responses served",
})
