package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireFrame decodes any outbound frame, state or error.
type wireFrame struct {
	Type        string            `json:"type"`
	Players     []PlayerSummary   `json:"players"`
	Judge       *string           `json:"judge"`
	BlackCard   *string           `json:"black_card"`
	Hand        []string          `json:"hand"`
	Started     bool              `json:"started"`
	Submissions map[string]string `json:"submissions"`
	Kind        string            `json:"kind"`
	Message     string            `json:"message"`
}

func newTestServer(t *testing.T) (*httptest.Server, *RoomManager) {
	t.Helper()

	cfg := testConfig()
	mgr := newRoomManager(cfg, testCatalog(10, 60))

	mux := httprouter.New()
	mux.GET("/healthz", serveHealthCheck(cfg, make(chan error, 8)))
	registerCardsGame(cfg, mgr, mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, mgr
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + roomID

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	var frame wireFrame

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))

	return frame
}

// readState reads the next frame and requires it to be a state
// snapshot.
func readState(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()

	frame := readFrame(t, conn)
	require.Equal(t, "state", frame.Type, "unexpected frame: %+v", frame)

	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketGameFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dialRoom(t, srv, "e2e")
	readState(t, alice) // connect snapshot

	sendFrame(t, alice, ClientMessage{Action: "join", Name: "Alice"})
	require.Len(t, readState(t, alice).Players, 1)

	bob := dialRoom(t, srv, "e2e")
	require.Len(t, readState(t, bob).Players, 1)
	sendFrame(t, bob, ClientMessage{Action: "join", Name: "Bob"})
	readState(t, alice)
	require.Len(t, readState(t, bob).Players, 2)

	carol := dialRoom(t, srv, "e2e")
	readState(t, carol)
	sendFrame(t, carol, ClientMessage{Action: "join", Name: "Carol"})
	readState(t, alice)
	readState(t, bob)
	require.Len(t, readState(t, carol).Players, 3)

	// Start: Alice judges, the others are dealt in.
	sendFrame(t, alice, ClientMessage{Action: "start_game"})

	aliceState := readState(t, alice)
	bobState := readState(t, bob)
	carolState := readState(t, carol)

	for _, st := range []wireFrame{aliceState, bobState, carolState} {
		assert.True(t, st.Started)
		require.NotNil(t, st.Judge)
		assert.Equal(t, "Alice", *st.Judge)
		require.NotNil(t, st.BlackCard)
		assert.Empty(t, st.Submissions)
	}
	assert.Empty(t, aliceState.Hand)
	assert.Len(t, bobState.Hand, 7)
	assert.Len(t, carolState.Hand, 7)
	assert.NotEqual(t, bobState.Hand, carolState.Hand)

	// Submissions: Bob then Carol; the second one opens judging.
	bobCard := bobState.Hand[2]
	sendFrame(t, bob, ClientMessage{Action: "play_card", Index: intptr(2)})
	readState(t, alice)
	assert.Len(t, readState(t, bob).Hand, 6)
	readState(t, carol)

	sendFrame(t, carol, ClientMessage{Action: "play_card", Index: intptr(0)})
	aliceState = readState(t, alice)
	bobState = readState(t, bob)
	carolState = readState(t, carol)

	require.Len(t, aliceState.Submissions, 2, "the judge sees every submission")
	assert.Equal(t, bobCard, aliceState.Submissions["Bob"])
	assert.Empty(t, bobState.Submissions, "Bob cannot see Carol's card before judging")
	assert.Empty(t, carolState.Submissions)

	// A non-judge trying to pick a winner is acked privately.
	sendFrame(t, carol, ClientMessage{Action: "choose_winner", Player: "Bob"})
	frame := readFrame(t, carol)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, string(errNotJudge), frame.Kind)

	// The judge resolves the round.
	sendFrame(t, alice, ClientMessage{Action: "choose_winner", Player: "Bob"})
	aliceState = readState(t, alice)
	bobState = readState(t, bob)
	carolState = readState(t, carol)

	for _, st := range []wireFrame{aliceState, bobState, carolState} {
		require.NotNil(t, st.Judge)
		assert.Equal(t, "Bob", *st.Judge)
		for _, p := range st.Players {
			if p.Name == "Bob" {
				assert.Equal(t, 1, p.Score)
			} else {
				assert.Equal(t, 0, p.Score)
			}
		}
	}
	assert.Len(t, aliceState.Hand, 7, "the former judge is dealt in")
	assert.Len(t, bobState.Hand, 6, "the new judge is not topped up")
	assert.Len(t, carolState.Hand, 7)
}

func TestWebSocketDuplicateName(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dialRoom(t, srv, "dupes")
	readState(t, alice)
	sendFrame(t, alice, ClientMessage{Action: "join", Name: "Alice"})
	readState(t, alice)

	imposter := dialRoom(t, srv, "dupes")
	readState(t, imposter)
	sendFrame(t, imposter, ClientMessage{Action: "join", Name: "Alice"})

	frame := readFrame(t, imposter)
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, string(errNameTaken), frame.Kind)
}

func TestServeNewRoom(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Len(t, payload["room_id"], 8)
}

func TestServeRoomQR(t *testing.T) {
	srv, mgr := newTestServer(t)

	// A freshly minted id is shareable by QR before anyone connects;
	// the room itself is only created on first contact.
	roomID := mgr.newRoomID()
	_, ok := mgr.lookup(roomID)
	require.False(t, ok)

	resp, err := http.Get(srv.URL + "/rooms/" + roomID + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestServeHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", string(body))
}
