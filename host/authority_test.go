package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthority_AuthorizeSignals(t *testing.T) {
	a := New()
	token := a.Issue("tasting-1")

	tests := []struct {
		name string
		ev   Evidence
		want bool
	}{
		{name: "no signals", ev: Evidence{}, want: false},
		{name: "role claim alone", ev: Evidence{RoleClaim: true}, want: true},
		{name: "payload assertion alone", ev: Evidence{AssertsHost: true}, want: true},
		{name: "explicit validation alone", ev: Evidence{ExplicitValidation: true}, want: true},
		{name: "valid payload token", ev: Evidence{PayloadToken: token}, want: true},
		{name: "valid stored token", ev: Evidence{StoredToken: token}, want: true},
		{name: "bogus payload token", ev: Evidence{PayloadToken: "forged"}, want: false},
		{name: "bogus stored token", ev: Evidence{StoredToken: "forged"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Authorize("tasting-1", tt.ev))
		})
	}
}

func TestAuthority_TokensAreSessionScoped(t *testing.T) {
	a := New()
	token := a.Issue("tasting-1")

	assert.True(t, a.Valid("tasting-1", token))
	assert.False(t, a.Valid("tasting-2", token))
	assert.False(t, a.Authorize("tasting-2", Evidence{PayloadToken: token}))
}

func TestAuthority_ManyCredentialsPerSession(t *testing.T) {
	a := New()
	t1 := a.Issue("tasting-1")
	t2 := a.Issue("tasting-1")

	require.NotEqual(t, t1, t2)
	assert.True(t, a.Valid("tasting-1", t1))
	assert.True(t, a.Valid("tasting-1", t2))
}

func TestAuthority_DropSession(t *testing.T) {
	a := New()
	t1 := a.Issue("tasting-1")
	t2 := a.Issue("tasting-2")

	a.DropSession("tasting-1")

	assert.False(t, a.Valid("tasting-1", t1))
	assert.True(t, a.Valid("tasting-2", t2), "other sessions keep their credentials")
}
