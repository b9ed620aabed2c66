package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpotato/backend/internal/models"
)

func testComposer() MessageComposer {
	return MessageComposer{
		DefaultLocale: "ro",
		Location:      time.UTC,
		Contact:       ContactInfo{Phone: "+40 700 000 000", Email: "contact@example.com"},
	}
}

func composerClient() models.Client {
	return models.Client{
		Name:              "Popescu Ion",
		LicensePlate:      "B-123-ABC",
		PhoneNumber:       "+40722111222",
		Email:             "ion@example.com",
		ITPExpirationDate: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
	}
}

func TestComposeSingularDay(t *testing.T) {
	msg, err := testComposer().Compose(composerClient(), 1, "en")
	require.NoError(t, err)

	assert.Contains(t, msg.SMSText, "1 day")
	assert.NotContains(t, msg.SMSText, "days")
	assert.Contains(t, msg.EmailHTML, "1 day<")
}

func TestComposePluralDays(t *testing.T) {
	msg, err := testComposer().Compose(composerClient(), 5, "en")
	require.NoError(t, err)

	assert.Contains(t, msg.SMSText, "5 days")
	assert.Contains(t, msg.SMSText, "13.03.2026")
	assert.False(t, msg.Urgent)
	assert.False(t, msg.Expired)
	assert.Equal(t, "ITP Reminder - B-123-ABC", msg.EmailSubject)
	assert.Contains(t, msg.EmailHTML, colorNormal)
	assert.NotContains(t, msg.EmailHTML, colorUrgent)
}

func TestComposeExpired(t *testing.T) {
	msg, err := testComposer().Compose(composerClient(), 0, "en")
	require.NoError(t, err)

	assert.True(t, msg.Expired)
	assert.Contains(t, msg.SMSText, "expired on 13.03.2026")
	assert.NotContains(t, msg.SMSText, "0 days")
	assert.Equal(t, "ITP Expired - B-123-ABC", msg.EmailSubject)
	assert.Contains(t, msg.EmailHTML, "EXPIRED")
	assert.Contains(t, msg.EmailHTML, "WARNING: Your ITP has expired!")
}

func TestComposeUrgentThreshold(t *testing.T) {
	msg, err := testComposer().Compose(composerClient(), 3, "en")
	require.NoError(t, err)
	assert.True(t, msg.Urgent)
	assert.Equal(t, "[URGENT] ITP Reminder - B-123-ABC", msg.EmailSubject)
	assert.Contains(t, msg.EmailHTML, colorUrgent)

	msg, err = testComposer().Compose(composerClient(), 4, "en")
	require.NoError(t, err)
	assert.False(t, msg.Urgent)
}

func TestComposeUnknownLocaleFallsBack(t *testing.T) {
	msg, err := testComposer().Compose(composerClient(), 2, "de")
	require.NoError(t, err)

	assert.Equal(t, "ro", msg.Locale)
	assert.Contains(t, msg.SMSText, "Buna ziua Popescu Ion")
	assert.Contains(t, msg.SMSText, "2 zile")
}

func TestComposeFrench(t *testing.T) {
	msg, err := testComposer().Compose(composerClient(), 1, "fr")
	require.NoError(t, err)
	assert.Contains(t, msg.SMSText, "1 jour ")
}

func TestComposeIsDeterministic(t *testing.T) {
	a, err := testComposer().Compose(composerClient(), 6, "en")
	require.NoError(t, err)
	b, err := testComposer().Compose(composerClient(), 6, "en")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComposeEscapesClientName(t *testing.T) {
	c := composerClient()
	c.Name = "<script>x</script>"

	msg, err := testComposer().Compose(c, 5, "en")
	require.NoError(t, err)
	assert.NotContains(t, msg.EmailHTML, "<script>")
}

func TestComposeUsesConfiguredLocation(t *testing.T) {
	loc := bucharest(t)
	c := composerClient()
	// 22:30 UTC on the 12th is already the 13th in Bucharest.
	c.ITPExpirationDate = time.Date(2026, 3, 12, 22, 30, 0, 0, time.UTC)

	composer := testComposer()
	composer.Location = loc
	msg, err := composer.Compose(c, 2, "en")
	require.NoError(t, err)
	assert.Contains(t, msg.SMSText, "13.03.2026")
}

func TestLocaleFor(t *testing.T) {
	c := composerClient()
	assert.Equal(t, "ro", testComposer().LocaleFor(c))

	c.Locale = "fr"
	assert.Equal(t, "fr", testComposer().LocaleFor(c))

	en := testComposer()
	en.DefaultLocale = "en"
	c.Locale = "de"
	assert.Equal(t, "en", en.LocaleFor(c))

	c.Locale = "FR"
	assert.Equal(t, "fr", en.LocaleFor(c))

	c.Locale = ""
	assert.Equal(t, "en", en.LocaleFor(c))

	en.DefaultLocale = "xx"
	c.Locale = "de"
	assert.Equal(t, "ro", en.LocaleFor(c))
}
