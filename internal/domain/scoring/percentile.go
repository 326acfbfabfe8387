package scoring

// Display range of a percentile score.
const (
	PercentileFloor = 33
	PercentileSpan  = 67
)

// Percentile ranks value against population and maps the rank quantile into
// [PercentileFloor, PercentileFloor+PercentileSpan]. Entries equal to value do
// not count as better, so ties share the optimistic rank. An empty population
// yields the floor. population is not modified.
func Percentile(value float64, population []float64) float64 {
	if len(population) == 0 {
		return PercentileFloor
	}
	better := 0
	for _, v := range population {
		if v > value {
			better++
		}
	}
	quantile := 1 - float64(better)/float64(len(population))
	return PercentileFloor + quantile*PercentileSpan
}
