package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{name: "national us", input: "(650) 253-0000", region: "US", want: "+16502530000"},
		{name: "already international", input: "+44 20 7031 3000", region: "US", want: "+442070313000"},
		{name: "lowercase region", input: "650-253-0000", region: "us", want: "+16502530000"},
		{name: "garbage kept trimmed", input: "  call the front desk ", region: "US", want: "call the front desk"},
		{name: "empty", input: "   ", region: "US", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input, tc.region); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("+16502530000", "US") {
		t.Fatalf("expected valid number")
	}
	if IsValid("12", "US") {
		t.Fatalf("expected short number to be invalid")
	}
}
