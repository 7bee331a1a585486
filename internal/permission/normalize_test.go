package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"informatique", "INFORMATIQUE"},
		{"  DAF  ", "DAF"},
		{"Sécurité", "SECURITE"},
		{"moyens généraux", "MOYENS_GENERAUX"},
		{"Ça  Marche", "CA_MARCHE"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeSetDropsEmptiesAndDuplicates(t *testing.T) {
	got := NormalizeSet([]string{"daf", "", "DAF", " Daf ", "drh"})
	assert.Equal(t, []string{"DAF", "DRH"}, got)
}

func TestNormalizeSetPreservesOrder(t *testing.T) {
	got := NormalizeSet([]string{"technique", "informatique", "daf"})
	assert.Equal(t, []string{"TECHNIQUE", "INFORMATIQUE", "DAF"}, got)
}

func TestContains(t *testing.T) {
	set := []string{"INFORMATIQUE", "DAF"}
	assert.True(t, Contains(set, "informatique"))
	assert.True(t, Contains(set, " daf "))
	assert.False(t, Contains(set, "DRH"))
	assert.False(t, Contains(nil, "DAF"))
}
