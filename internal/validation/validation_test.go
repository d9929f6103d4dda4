package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coachwise/coachwise/internal/idgen"
)

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("dsp_a1b2c3d4e5f60718293a4b5c"))
	assert.True(t, IsValidID("bk_0123abcd"))
	assert.False(t, IsValidID("no-prefix"))
	assert.False(t, IsValidID("dsp_"))
	assert.False(t, IsValidID("dsp_XYZ"))
	assert.False(t, IsValidID(""))
}

func TestIsValidID_AcceptsGeneratedIDs(t *testing.T) {
	// every ID the engine mints must pass the route middleware
	assert.True(t, IsValidID(idgen.WithPrefix("dsp")))
	assert.True(t, IsValidID(idgen.WithPrefix("pol")))
	assert.True(t, IsValidID(idgen.WithPrefix("msg")))
	assert.True(t, IsValidID(idgen.WithPrefix("re")))
}

func TestIsValidCurrency(t *testing.T) {
	assert.True(t, IsValidCurrency("CHF"))
	assert.True(t, IsValidCurrency("EUR"))
	assert.False(t, IsValidCurrency("chf"))
	assert.False(t, IsValidCurrency("CH"))
	assert.False(t, IsValidCurrency("CHFX"))
}

func TestSanitizeNote(t *testing.T) {
	assert.Equal(t, "hello", SanitizeNote("  hello\x00  "))
	long := strings.Repeat("a", MaxNoteLength+100)
	assert.Len(t, SanitizeNote(long), MaxNoteLength)
}

func TestValidate_CollectsErrors(t *testing.T) {
	errs := Validate(
		Required("reason", ""),
		ValidID("booking_id", "bad id"),
		ValidCurrency("currency", "xx"),
		NonNegativeCents("amount_cents", -5),
	)
	assert.Len(t, errs, 4)
	assert.Contains(t, errs.Error(), "reason")
}

func TestValidate_PassThrough(t *testing.T) {
	errs := Validate(
		Required("reason", "coach cancelled"),
		ValidID("booking_id", "bk_0123abcd"),
		ValidCurrency("currency", "CHF"),
		NonNegativeCents("amount_cents", 5000),
	)
	assert.Empty(t, errs)
}
