package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSemVer_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "1", 0},
		{"1", "2", -1},
		{"10", "9", 1},
		{"1.0", "1.0.1", -1},
		{"1.2.3", "1.2.3", 0},
		{"1.10", "1.9", 1},
		{"01", "1", 0},
		{"1.a", "1.b", -1},
		{"1.2", "1.a", -1},
		{"1.0-alpha", "1.0", -1},
		{"1.0", "1.0-alpha", 1},
		{"1.0-alpha", "1.0-beta", -1},
		{"1.0-alpha.1", "1.0-alpha.2", -1},
		{"1.0-alpha.2", "1.0-alpha.10", -1},
		{"1.0-1", "1.0-alpha", -1},
		{"1.0+build5", "1.0+build7", 0},
		{"1.0-RC1", "1.0-rc1", 0},
		{"123456789012345678901234567890", "123456789012345678901234567891", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSemVer(tt.a).Compare(ParseSemVer(tt.b)))
			assert.Equal(t, -tt.want, ParseSemVer(tt.b).Compare(ParseSemVer(tt.a)))
		})
	}
}

func TestSemVer_String(t *testing.T) {
	assert.Equal(t, "1.0-rc1+abc", ParseSemVer(" 1.0-RC1+ABC ").String())
}
