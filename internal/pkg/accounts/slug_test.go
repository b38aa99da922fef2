package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Acme", want: "acme"},
		{name: "spaces", in: "Acme Corp", want: "acme-corp"},
		{name: "punctuation", in: "Acme, Inc.", want: "acme-inc"},
		{name: "collapses runs", in: "A  --  B", want: "a-b"},
		{name: "trims edges", in: " !Acme! ", want: "acme"},
		{name: "digits kept", in: "Area 51", want: "area-51"},
		{name: "non ascii dropped", in: "Café Über", want: "caf-ber"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parameterize(tt.in))
		})
	}
}
