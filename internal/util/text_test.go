package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDegenerateKey(t *testing.T) {
	placeholders := []string{"undefined", "null"}
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "empty", input: "", want: true},
		{name: "whitespace", input: "   \t", want: true},
		{name: "nbsp", input: "\u00a0", want: true},
		{name: "placeholder", input: "undefined", want: true},
		{name: "placeholder upper padded", input: "  UNDEFINED ", want: true},
		{name: "null token", input: "Null", want: true},
		{name: "real code", input: "7891000", want: false},
		{name: "contains token", input: "undefined-1", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDegenerateKey(tc.input, placeholders))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "ABC-1", NormalizeKey("  ABC-1\n"))
	assert.Equal(t, "a b", NormalizeKey(" a b "))
}

func TestHTMLToText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Arroz  tipo 1\n5kg", want: "Arroz tipo 1 5kg"},
		{name: "paragraphs", input: "<p>Arroz</p><p>tipo <b>1</b></p>", want: "Arroz tipo 1"},
		{name: "script dropped", input: "<div>Feijao<script>alert(1)</script></div>", want: "Feijao"},
		{name: "empty", input: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTMLToText(tc.input))
		})
	}
}

func TestTag(t *testing.T) {
	assert.Equal(t, "mercearia", Tag("  MERCEARIA "))
	assert.Equal(t, "sem marca", Tag("Sem  Marca."))
}
