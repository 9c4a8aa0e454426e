package scheduler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rchlabs/rch/rchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClassifyEndpoint(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry("w1")
	s := New(DefaultConfig(), newTestClassifier(t), reg, &fakeExecutor{}, nil)
	srv := httptest.NewServer(NewAPI(s, "", nil).Router())
	defer srv.Close()

	body, _ := json.Marshal(classifyRequest{Raw: "rm -rf /tmp/x"})
	resp, err := http.Post(srv.URL+"/api/v0/classify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out classifyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, rchapi.LocalReject.String(), out.Verdict)
}

func TestAPIBuildEndpointStreamsEvents(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry("w1")
	s := New(DefaultConfig(), newTestClassifier(t), reg, &fakeExecutor{}, nil)
	srv := httptest.NewServer(NewAPI(s, "", nil).Router())
	defer srv.Close()

	body, _ := json.Marshal(buildRequest{classifyRequest: classifyRequest{Raw: "cc -c foo.c -o foo.o"}})
	resp, err := http.Post(srv.URL+"/api/v0/build", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var statuses []string
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		statuses = append(statuses, ev.Status.String())
	}

	require.NotEmpty(t, statuses)
	assert.Equal(t, "completed", statuses[len(statuses)-1])
}

func TestAPIRequiresAuthTokenWhenConfigured(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry("w1")
	s := New(DefaultConfig(), newTestClassifier(t), reg, &fakeExecutor{}, nil)
	srv := httptest.NewServer(NewAPI(s, "secret", nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v0/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
