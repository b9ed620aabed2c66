package locales

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	cases := map[string]string{
		"ro":    "ro",
		"EN":    "en",
		"fr-FR": "fr",
		"en_GB": "en",
		"de":    Default,
		"":      Default,
	}
	for in, want := range cases {
		assert.Equal(t, want, Resolve(in), "input %q", in)
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	assert.Equal(t, table[Default], Get("xx"))
	assert.Equal(t, "days", Get("en").SMS.Days)
	assert.Equal(t, "zile", Get("ro").SMS.Days)
	assert.Equal(t, "jours", Get("fr").SMS.Days)
}

func TestEveryLocaleIsComplete(t *testing.T) {
	for _, code := range Supported() {
		tr := table[code]
		assert.NotEmpty(t, tr.SMS.Reminder, code)
		assert.NotEmpty(t, tr.SMS.Expired, code)
		assert.NotEmpty(t, tr.SMS.Day, code)
		assert.NotEmpty(t, tr.Email.Subject, code)
		assert.NotEmpty(t, tr.Email.SubjectExpired, code)
		assert.NotEmpty(t, tr.Email.WarningExpired, code)
		assert.NotEmpty(t, tr.Email.Footer, code)
	}
}

func TestInterpolate(t *testing.T) {
	got := Interpolate("Hi {{name}}, {{days}} {{daysWord}} left {{unknown}}", map[string]string{
		"name":     "Ana",
		"days":     "2",
		"daysWord": "days",
	})
	assert.Equal(t, "Hi Ana, 2 days left {{unknown}}", got)
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []string{"en", "fr", "ro"}, Supported())
	assert.True(t, IsSupported("fr"))
	assert.False(t, IsSupported("de"))
	assert.True(t, IsSupported(" EN "))
}
