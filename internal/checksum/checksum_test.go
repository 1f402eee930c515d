package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("<tw-storydata></tw-storydata>"))
	b := Sum([]byte("<tw-storydata></tw-storydata>"))
	if a != b || len(a) != 64 {
		t.Errorf("Sum = %q / %q", a, b)
	}
	if Sum([]byte("x")) == a {
		t.Error("different input produced same sum")
	}
}

func TestMatches(t *testing.T) {
	sum := Sum([]byte("story"))
	cases := []struct {
		header string
		want   bool
	}{
		{ETag(sum), true},
		{sum, true},
		{"*", true},
		{`"nope", ` + ETag(sum), true},
		{`W/` + ETag(sum), true},
		{`"nope"`, false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Matches(tc.header, sum); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}
