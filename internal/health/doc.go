// Package health derives source reliability from daily ingestion metrics.
//
// scorer.go turns one source-day into a 0–100 composite of four weighted
// signals: yield against the source's recent median, duplicate ratio, error
// rate and freshness relative to the poll interval. A day with nothing found
// and no errors is "no data" and scores NoDataScore rather than an extreme.
//
// aggregator.go summarizes a source's trailing daily scores into current
// health, a 7-day average, a trend and a status, and rolls summaries up into
// the cross-source Overview. Days without a metrics row are gaps: they are
// left out of every window, never counted as zero.
//
// service.go reads sources and metrics from storage and wires both together.
package health
