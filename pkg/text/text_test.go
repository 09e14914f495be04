package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveName(t *testing.T) {
	cases := map[string]string{
		"write a function returning true for even integers": "write",
		"Create a validator for emails":                     "create",
		"Créer une fonction":                                "creer",
		"   ":                                               DefaultName,
		"!!! nothing":                                       DefaultName,
		"2fa helper":                                        "m2fa",
	}
	for in, want := range cases {
		assert.Equal(t, want, DeriveName(in), in)
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "shopping_cart", Sanitize("Shopping-Cart!"))
	assert.Equal(t, "shopping_cart", Sanitize("shopping_cart"))
	assert.Equal(t, "", Sanitize("—"))
}

func TestPascal(t *testing.T) {
	assert.Equal(t, "ShoppingCart", Pascal("shopping_cart"))
	assert.Equal(t, "Even", Pascal("even"))
	assert.Equal(t, "", Pascal("_"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", Tail("short", 100))

	long := strings.Repeat("line\n", 100)
	out := Tail(long, 20)
	assert.True(t, strings.HasPrefix(out, "...(truncated)\n"))
	assert.LessOrEqual(t, len(out), 20+len("...(truncated)\n"))
	assert.True(t, strings.HasSuffix(out, "line\n"))
}
