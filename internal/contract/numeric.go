package contract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidRangeFormat is returned when an answer label does not encode
// a numeric range. Unlike payout failures, this propagates to the caller.
var ErrInvalidRangeFormat = errors.New("contract: invalid range format")

// numberRegex matches signed decimal numbers inside an answer label.
var numberRegex = regexp.MustCompile(`[-+]?\d+(\.\d+)?`)

// ParseAnswerRange extracts the [min, max] range encoded in a numeric
// answer label such as "10-20" or "-5 to -3". Exactly two numbers must be
// present. Labels with a single dash are range separators, so both values
// are read as non-negative there.
func ParseAnswerRange(label string) (min, max float64, err error) {
	text := strings.TrimSpace(label)
	matches := numberRegex.FindAllString(text, -1)
	if len(matches) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeFormat, label)
	}

	lo, err := strconv.ParseFloat(matches[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeFormat, label)
	}
	hi, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidRangeFormat, label)
	}

	if strings.Count(text, "-") == 1 {
		lo, hi = math.Abs(lo), math.Abs(hi)
	}
	return lo, hi, nil
}

// AnswerMidpoint returns the midpoint of a numeric answer label.
func AnswerMidpoint(label string) (float64, error) {
	lo, hi, err := ParseAnswerRange(label)
	if err != nil {
		return 0, err
	}
	return (lo + hi) / 2, nil
}

// BucketSize returns the width of each bucket when [min, max] is split
// into the given number of buckets.
func BucketSize(min, max float64, buckets int) float64 {
	return (max - min) / float64(buckets)
}

// BucketDecimalPlaces returns how many decimal places bucket boundaries
// are rounded to. Coarse buckets round to integers; fine buckets keep
// enough places to distinguish neighbors.
func BucketDecimalPlaces(min, max float64, buckets int) int {
	size := BucketSize(min, max, buckets)
	if size > 10/float64(buckets) {
		return 0
	}
	places := int(math.Ceil(math.Abs(math.Log10(size))))
	if places < 0 {
		return 0
	}
	return places
}

// BucketRanges splits [min, max] into bucket boundary pairs, rounding
// boundaries to BucketDecimalPlaces. A zero-width range or non-positive
// bucket count collapses to the single range [min, max].
func BucketRanges(min, max float64, buckets int) [][2]float64 {
	if max-min == 0 || buckets <= 0 {
		return [][2]float64{{min, max}}
	}
	step := (max - min) / float64(buckets)
	places := BucketDecimalPlaces(min, max, buckets)

	ranges := make([][2]float64, 0, buckets)
	for i := 0; i < buckets; i++ {
		lo := roundTo(min+float64(i)*step, places)
		hi := roundTo(min+float64(i+1)*step, places)
		ranges = append(ranges, [2]float64{lo, hi})
	}
	return ranges
}

// BucketRangeNames renders bucket ranges as "lo-hi" answer labels.
func BucketRangeNames(min, max float64, buckets int) []string {
	ranges := BucketRanges(min, max, buckets)
	names := make([]string, 0, len(ranges))
	for _, r := range ranges {
		names = append(names, formatBound(r[0])+"-"+formatBound(r[1]))
	}
	return names
}

// ExpectedValue computes the probability-weighted midpoint over a numeric
// contract's answers. Answers whose label fails to parse propagate the
// parse error.
func ExpectedValue(c *Contract, answers []*Answer) (float64, error) {
	var total float64
	for _, a := range answers {
		mid, err := AnswerMidpoint(a.Text)
		if err != nil {
			return 0, err
		}
		total += AnswerProbability(a) * mid
	}
	return total, nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
