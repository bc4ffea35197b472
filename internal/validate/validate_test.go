package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSlug(t *testing.T) {
	cases := map[string]string{
		"Tacos Dona Lupe":  "tacos-dona-lupe",
		"  spaced  out  ":  "spaced-out",
		"UPPER":            "upper",
		"keep-dashes":      "keep-dashes",
		"dots.and/slashes": "dotsandslashes",
		"--edge--":         "edge",
		"a--b---c":         "a-b-c",
		"ñandú store":      "and-store",
		"":                 "",
	}
	for input, want := range cases {
		assert.Equal(t, want, CleanSlug(input), "input %q", input)
	}
}

func TestCleanSlugTruncates(t *testing.T) {
	long := "this-is-a-very-long-store-name-that-keeps-going-on"
	got := CleanSlug(long)
	assert.LessOrEqual(t, len(got), SlugMaxLength)
	assert.NotEqual(t, "-", got[len(got)-1:])
}

func TestSlug(t *testing.T) {
	assert.Empty(t, Slug("tacos-dona-lupe"))
	assert.Empty(t, Slug("a2"))
	assert.NotEmpty(t, Slug("a"))
	assert.NotEmpty(t, Slug("-leading"))
	assert.NotEmpty(t, Slug("trailing-"))
	assert.NotEmpty(t, Slug("double--dash"))
	assert.NotEmpty(t, Slug("UpperCase"))
	assert.NotEmpty(t, Slug("with space"))
	assert.NotEmpty(t, Slug("this-slug-is-way-too-long-to-be-accepted-here"))
}

func TestNormalizeEmailIsIdempotent(t *testing.T) {
	inputs := []string{
		" User@Example.COM ",
		"user\u200b@example.com",
		"\ufeffuser@example.com",
		"u s e r@example.com",
	}
	for _, input := range inputs {
		once := NormalizeEmail(input)
		assert.Equal(t, once, NormalizeEmail(once), "input %q", input)
		assert.Equal(t, "user@example.com", once, "input %q", input)
	}
}

func TestEmail(t *testing.T) {
	email, msg := Email(" Owner@Example.com ")
	assert.Empty(t, msg)
	assert.Equal(t, "owner@example.com", email)

	_, msg = Email("not-an-email")
	assert.NotEmpty(t, msg)

	_, msg = Email("")
	assert.NotEmpty(t, msg)
}

func TestPassword(t *testing.T) {
	assert.Empty(t, Password("password1"))
	assert.NotEmpty(t, Password("short1"))
	assert.NotEmpty(t, Password("onlyletters"))
	assert.NotEmpty(t, Password("12345678"))
}

func TestPriceCoercion(t *testing.T) {
	assert.Equal(t, 4.5, Price("4.5"))
	assert.Equal(t, 0.0, Price(""))
	assert.Equal(t, 0.0, Price("abc"))
	assert.Equal(t, 0.0, Price("-3"))
	assert.Equal(t, 10.0, Price(" 10 "))
}

func TestInventoryCountCoercion(t *testing.T) {
	assert.Equal(t, 7, InventoryCount("7"))
	assert.Equal(t, 0, InventoryCount(""))
	assert.Equal(t, 0, InventoryCount("abc"))
	assert.Equal(t, 0, InventoryCount("-2"))
	assert.Equal(t, 0, InventoryCount("3.5"))
}

func TestWhatsAppNumber(t *testing.T) {
	assert.Empty(t, WhatsAppNumber(""))
	assert.Empty(t, WhatsAppNumber("+5215512345678"))
	assert.NotEmpty(t, WhatsAppNumber("5215512345678"))
	assert.NotEmpty(t, WhatsAppNumber("+123"))
	assert.NotEmpty(t, WhatsAppNumber("+123456789012345678901"))
}