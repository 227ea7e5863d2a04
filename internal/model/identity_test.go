package model

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panel/internal/errs"
)

func TestParseIdentity_YesNoFlags(t *testing.T) {
	body := []byte(`{
		"id": "42",
		"email": "ada@example.com",
		"firstname": "Ada",
		"lastname": "Lovelace",
		"accountType": "enterprise",
		"2FA": "no",
		"whatsapp_mfa": "yes",
		"email_mfa": "",
		"enterprise_name": "Analytical",
		"enterprise_is_validated": "yes",
		"roles": {"admin": true}
	}`)

	id, err := ParseIdentity(body)
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", id.FullName())
	assert.True(t, id.IsAdmin)
	assert.Equal(t, Channels{WhatsApp: true}, id.TwoFactor)
	require.NotNil(t, id.Enterprise)
	assert.True(t, id.Enterprise.Validated)
	assert.Equal(t, AccountTypeEnterprise, id.AccountType)
}

func TestParseIdentity_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing id":     `{"email": "a@b.c"}`,
		"missing email":  `{"id": "1"}`,
		"bad flag":       `{"id": "1", "email": "a@b.c", "2FA": "maybe"}`,
		"not json":       `<html>`,
		"numeric flag":   `{"id": "1", "email": "a@b.c", "email_mfa": 1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIdentity([]byte(body))
			assert.ErrorIs(t, err, errs.ErrMalformedPayload)
		})
	}
}

func TestParseLoginOutcome(t *testing.T) {
	withChannels, err := ParseLoginOutcome([]byte(`{"2FA": "yes", "email_mfa": "yes"}`))
	require.NoError(t, err)
	assert.Nil(t, withChannels.Identity)
	ch, ok := withChannels.Channels.Preferred()
	require.True(t, ok)
	assert.Equal(t, ChannelAuthenticator, ch)

	direct, err := ParseLoginOutcome([]byte(`{"id": "7", "email": "x@y.z", "2FA": "no"}`))
	require.NoError(t, err)
	require.NotNil(t, direct.Identity)
	assert.Equal(t, "7", direct.Identity.ID)
	assert.Equal(t, AccountTypeUser, direct.Identity.AccountType)
}

func TestChannels_Preferred(t *testing.T) {
	tests := []struct {
		in   Channels
		want Channel
		ok   bool
	}{
		{Channels{Authenticator: true, WhatsApp: true, Email: true}, ChannelAuthenticator, true},
		{Channels{WhatsApp: true, Email: true}, ChannelWhatsApp, true},
		{Channels{Email: true}, ChannelEmail, true},
		{Channels{}, "", false},
	}
	for _, tt := range tests {
		got, ok := tt.in.Preferred()
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel(" WhatsApp ")
	require.NoError(t, err)
	assert.Equal(t, ChannelWhatsApp, ch)

	_, err = ParseChannel("sms")
	assert.Error(t, err)
}

func TestCredentials_Merge(t *testing.T) {
	var c Credentials
	c.Merge([]*http.Cookie{
		{Name: "session", Value: "s1"},
		{Name: "csrf", Value: "c1"},
	})
	assert.Equal(t, []Cookie{{Name: "csrf", Value: "c1"}, {Name: "session", Value: "s1"}}, c.Items)

	c.Merge([]*http.Cookie{
		{Name: "session", Value: "s2"},
		{Name: "csrf", MaxAge: -1},
	})
	assert.Equal(t, []Cookie{{Name: "session", Value: "s2"}}, c.Items)

	c.Merge([]*http.Cookie{{Name: "session", Value: "gone", Expires: time.Unix(1, 0)}})
	assert.True(t, c.Empty())
}
