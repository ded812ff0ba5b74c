package core

// fieldStats accumulates mean/min/max for one numeric column.
type fieldStats struct {
	sum, min, max float64
}

func (f *fieldStats) add(v float64, first bool) {
	f.sum += v
	if first || v < f.min {
		f.min = v
	}
	if first || v > f.max {
		f.max = v
	}
}

func (f fieldStats) avg(n int) float64 {
	if n == 0 {
		return 0
	}
	return f.sum / float64(n)
}

// Summarize computes aggregate statistics over records. Order does not
// matter and no rounding is applied. An empty input yields a zero-valued
// summary with an empty (non-nil) type distribution.
func Summarize(records []EquipmentRecord) SummaryStatistics {
	var flow, pres, temp fieldStats
	dist := make(map[string]int)

	for i, r := range records {
		first := i == 0
		flow.add(r.Flowrate, first)
		pres.add(r.Pressure, first)
		temp.add(r.Temperature, first)
		dist[r.Type]++
	}

	n := len(records)
	return SummaryStatistics{
		TotalCount:       n,
		AvgFlowrate:      flow.avg(n),
		AvgPressure:      pres.avg(n),
		AvgTemperature:   temp.avg(n),
		MinFlowrate:      flow.min,
		MaxFlowrate:      flow.max,
		MinPressure:      pres.min,
		MaxPressure:      pres.max,
		MinTemperature:   temp.min,
		MaxTemperature:   temp.max,
		TypeDistribution: dist,
	}
}
