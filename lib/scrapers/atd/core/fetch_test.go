package core

import (
	"context"
	"testing"
	"time"

	"atdkit/lib/credstore"
	"atdkit/lib/timezone"

	"github.com/stretchr/testify/require"
)

func testCredentials() (credstore.Credentials, error) {
	return credstore.Credentials{Email: "alice@example.com", Password: "hunter2"}, nil
}

func TestFetchReauthenticatesOnce(t *testing.T) {
	portal, server := newFakePortal(t)
	client := newTestClient(t, server, ClientOptions{
		AutoRelogin: true,
		Credentials: testCredentials,
	})

	ctx := context.Background()
	// a session the store believes is valid but the portal has already
	// dropped server-side
	err := client.Sessions.Write(ctx, Session{
		Id:        "dropped",
		ExpiresAt: timezone.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := client.Get(ctx, "/employee/attendance", nil)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 200, res.StatusCode())
	require.Contains(t, res.String(), "/employee/logout")
	// the login flow ran in between the two attendance fetches
	require.True(t, portal.loggedIn.Load())
}

func TestFetchReauthFailureIsTerminal(t *testing.T) {
	portal, server := newFakePortal(t)
	// even a fresh login never satisfies the attendance endpoint
	portal.rejectAttend = true
	client := newTestClient(t, server, ClientOptions{
		AutoRelogin: true,
		Credentials: testCredentials,
	})

	ctx := context.Background()
	err := client.Sessions.Write(ctx, Session{
		Id:        "dropped",
		ExpiresAt: timezone.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	requestsBefore := portal.requests.Load()
	_, err = client.Get(ctx, "/employee/attendance", nil)
	require.ErrorIs(t, err, ErrReauthFailed)

	// exactly one retry: two attendance fetches plus the five-request
	// login flow in between, then it stops
	require.EqualValues(t, 7, portal.requests.Load()-requestsBefore)
}

func TestFetchWithoutCredentials(t *testing.T) {
	_, server := newFakePortal(t)
	client := newTestClient(t, server, ClientOptions{})

	ctx := context.Background()
	err := client.Sessions.Write(ctx, Session{
		Id:        "dropped",
		ExpiresAt: timezone.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Get(ctx, "/employee/attendance", nil)
	require.ErrorIs(t, err, ErrSessionExpired)
}
