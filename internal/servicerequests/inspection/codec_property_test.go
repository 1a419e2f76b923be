package inspection

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// grades[i] == 0 leaves point i out; 1..3 picks a severity.
func findingsFromGrades(points []string, grades []int) Findings {
	f := make(Findings)
	for i, g := range grades {
		if i >= len(points) || g == 0 {
			continue
		}
		f[points[i]] = Severities[g-1]
	}
	return f
}

func TestCodecRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	codec := NewCodec(nil)
	points := codec.Checklist().Points()

	properties.Property("decode(encode(f)) == f for any subset and severity mix", prop.ForAll(
		func(grades []int) bool {
			f := findingsFromGrades(points, grades)
			return sameFindings(f, codec.Decode(codec.Encode(f)).Findings())
		},
		gen.SliceOfN(len(points), gen.IntRange(0, len(Severities))),
	))

	properties.Property("summary counts match the encoded findings", prop.ForAll(
		func(grades []int) bool {
			f := findingsFromGrades(points, grades)
			want := Summary{}
			for _, s := range f {
				switch s {
				case SeverityUrgent:
					want.Urgent++
				case SeverityRecommended:
					want.Recommended++
				default:
					want.Good++
				}
			}
			return Summarize("free text before\n"+codec.Encode(f)) == want
		},
		gen.SliceOfN(len(points), gen.IntRange(0, len(Severities))),
	))

	properties.TestingRun(t)
}
