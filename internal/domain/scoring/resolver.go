package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/zkpresence/internal/domain/model"
)

// leadingFloat matches the numeric prefix a lenient float parse would accept.
var leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// Resolve returns the first record whose username equals username ignoring
// case. Partial matches never count.
func Resolve(username string, ds model.Dataset) (model.LeaderboardRecord, bool) {
	for _, rec := range ds {
		if strings.EqualFold(rec.Username, username) {
			return rec, true
		}
	}
	return model.LeaderboardRecord{}, false
}

// ParseMindshare converts a percent string such as "4.25%" to 4.25.
// Anything without a numeric prefix, and non-finite values, become 0.
func ParseMindshare(s string) float64 {
	s = strings.TrimSpace(strings.Replace(s, "%", "", 1))
	num := leadingFloat.FindString(s)
	if num == "" {
		return 0
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Mindshares returns the percentile population of a dataset, one entry per
// record in order. Unparseable values are included as 0.
func Mindshares(ds model.Dataset) []float64 {
	out := make([]float64, len(ds))
	for i, rec := range ds {
		out[i] = ParseMindshare(rec.Mindshare)
	}
	return out
}
