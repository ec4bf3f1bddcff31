package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/practicelab/relay/internal/store"
)

const testSecret = "test-secret"

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

func signWith(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestVerifyAcceptsSignedToken(t *testing.T) {
	tok, err := Sign(testSecret, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := NewVerifier(testSecret, nil).Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.TokenID == "" {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestVerifyRejections(t *testing.T) {
	now := time.Now()
	expired := signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	})
	noExp := signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: "u1"})
	noSub := signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	wrongKey := signWith(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	hs512 := signWith(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	revoked := signWith(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})

	v := NewVerifier(testSecret, revokedSet{"jti-1": true})
	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingCredential},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"no exp", noExp, ErrInvalidToken},
		{"no subject", noSub, ErrInvalidToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"wrong alg", hs512, ErrInvalidToken},
		{"revoked", revoked, ErrRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestCredentialFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/session?token=abc", nil)
	if got := CredentialFromRequest(r); got != "abc" {
		t.Fatalf("query token=%q", got)
	}
	r = httptest.NewRequest("GET", "/ws/session", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	if got := CredentialFromRequest(r); got != "xyz" {
		t.Fatalf("header token=%q", got)
	}
	r.Header.Set("Authorization", "Basic xyz")
	if got := CredentialFromRequest(r); got != "" {
		t.Fatalf("basic auth should not count, got %q", got)
	}
}

func TestParsePractice(t *testing.T) {
	cases := []struct {
		raw     string
		want    Descriptor
		wantErr bool
	}{
		{raw: `{"type":"roleplay","sessionId":"s1","organizationId":"o1"}`, want: Descriptor{store.KindRoleplay, "s1", "o1"}},
		{raw: `{"type":"lesson","sessionId":"s2","organizationId":"o1"}`, want: Descriptor{store.KindLesson, "s2", "o1"}},
		{raw: `{"roleplaySessionId":"s3","organizationId":"o1"}`, want: Descriptor{store.KindRoleplay, "s3", "o1"}},
		{raw: `{"lessonSessionId":"s4","organizationId":"o1"}`, want: Descriptor{store.KindLesson, "s4", "o1"}},
		{raw: ``, wantErr: true},
		{raw: `{`, wantErr: true},
		{raw: `{"type":"quiz","sessionId":"s1","organizationId":"o1"}`, wantErr: true},
		{raw: `{"type":"roleplay","organizationId":"o1"}`, wantErr: true},
		{raw: `{"type":"roleplay","sessionId":"s1"}`, wantErr: true},
		{raw: `{"roleplaySessionId":"a","lessonSessionId":"b","organizationId":"o1"}`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParsePractice(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrBadPractice) {
				t.Fatalf("ParsePractice(%q) err=%v, want ErrBadPractice", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParsePractice(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePractice(%q)=%+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestTierAtLeast(t *testing.T) {
	cases := []struct {
		have, want string
		ok         bool
	}{
		{"free", "", true},
		{"pro", "pro", true},
		{"enterprise", "pro", true},
		{"basic", "pro", false},
		{"mystery", "pro", false},
		{"Pro", "pro", true},
	}
	for _, tc := range cases {
		if got := TierAtLeast(tc.have, tc.want); got != tc.ok {
			t.Fatalf("TierAtLeast(%q,%q)=%v", tc.have, tc.want, got)
		}
	}
}

func newDirectory(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	_ = m.UpsertProfile(ctx, store.Profile{ID: "p1", UserID: "u1"})
	_ = m.UpsertProfile(ctx, store.Profile{ID: "p2", UserID: "u2"})
	_ = m.UpsertOrganization(ctx, store.Organization{ID: "org1", Tier: "pro"})
	_ = m.UpsertOrganization(ctx, store.Organization{ID: "org2", Tier: "free"})
	_ = m.AddMember(ctx, "org1", "p1")
	_ = m.AddMember(ctx, "org2", "p1")
	_ = m.UpsertPractice(ctx, store.Practice{Kind: store.KindRoleplay, SessionID: "rp1", OrganizationID: "org1", ProfileID: "p1"})
	_ = m.UpsertPractice(ctx, store.Practice{Kind: store.KindLesson, SessionID: "ls1", OrganizationID: "org2", ProfileID: "p1"})
	return m
}

func request(t *testing.T, userID, practice string) *http.Request {
	t.Helper()
	q := url.Values{}
	if userID != "" {
		tok, err := Sign(testSecret, userID, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		q.Set("token", tok)
	}
	if practice != "" {
		q.Set("practice", practice)
	}
	return httptest.NewRequest("GET", "/ws/session?"+q.Encode(), nil)
}

func TestAuthorize(t *testing.T) {
	a := NewAuthorizer(NewVerifier(testSecret, nil), newDirectory(t), "pro")
	roleplay := `{"type":"roleplay","sessionId":"rp1","organizationId":"org1"}`

	grant, err := a.Authorize(context.Background(), request(t, "u1", roleplay))
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if grant.Profile.ID != "p1" || grant.Practice.SessionID != "rp1" || grant.Claims.UserID != "u1" {
		t.Fatalf("grant=%+v", grant)
	}

	cases := []struct {
		name     string
		user     string
		practice string
		want     error
	}{
		{"no credential", "", roleplay, ErrMissingCredential},
		{"no profile", "ghost", roleplay, ErrNoProfile},
		{"no practice", "u1", "", ErrBadPractice},
		{"not member", "u2", roleplay, ErrNotMember},
		{"tier too low", "u1", `{"type":"lesson","sessionId":"ls1","organizationId":"org2"}`, ErrTierTooLow},
		{"unknown practice", "u1", `{"type":"lesson","sessionId":"nope","organizationId":"org1"}`, ErrPracticeNotFound},
		{"practice in other org", "u1", `{"type":"roleplay","sessionId":"rp1","organizationId":"org1x"}`, ErrNotMember},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Authorize(context.Background(), request(t, tc.user, tc.practice))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v, want %v", err, tc.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	if got := Reason(ErrTierTooLow); got != "tier" {
		t.Fatalf("got %q", got)
	}
	if got := Reason(errors.New("db down")); got != "internal" {
		t.Fatalf("got %q", got)
	}
}
