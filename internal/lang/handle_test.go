package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateHandle(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		max   int
		delim string
		want  string
	}{
		{name: "plain", in: "Latest Articles", delim: "-", want: "latest-articles"},
		{name: "underscore delim", in: "Latest Articles", delim: "_", want: "latest_articles"},
		{name: "diacritics", in: "Crème Brûlée", delim: "-", want: "creme-brulee"},
		{name: "special letters", in: "Straße", delim: "-", want: "strasse"},
		{name: "punctuation collapsed", in: "  Hello,   World!! ", delim: "-", want: "hello-world"},
		{name: "leading symbols dropped", in: "--$Red", delim: "-", want: "red"},
		{name: "max length", in: "abc def ghi", max: 5, delim: "-", want: "abc-d"},
		{name: "cut on delimiter", in: "abc def", max: 4, delim: "-", want: "abc"},
		{name: "only symbols", in: "!!!", delim: "-", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CreateHandle(tt.in, tt.max, tt.delim))
		})
	}
}

func TestIsHandle(t *testing.T) {
	assert.True(t, IsHandle("latest-articles", "-"))
	assert.False(t, IsHandle("Latest Articles", "-"))
	assert.False(t, IsHandle("", "-"))
}
