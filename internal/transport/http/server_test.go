package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/backworld/backworld-server/internal/auth"
	"github.com/backworld/backworld-server/internal/config"
	"github.com/backworld/backworld-server/internal/core"
	"github.com/backworld/backworld-server/internal/log"
	"github.com/backworld/backworld-server/internal/store/sqlite"
)

func startAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	verifier := core.VerifierFunc(func(credential string) (int64, string, error) {
		claims, err := authService.ValidateToken(credential)
		if err != nil {
			return 0, "", err
		}
		return claims.UserID, claims.Username, nil
	})

	hub := core.NewHub(st, verifier, log.Nop(), core.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(cfg, hub, hub.Reconciler(), st, authService, log.Nop())

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path, token string, body any) *stdhttp.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := stdhttp.NewRequest(stdhttp.MethodPost, ts.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path, token string, out any) int {
	t.Helper()
	req, err := stdhttp.NewRequest(stdhttp.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode GET %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func registerUser(t *testing.T, ts *httptest.Server, username string) AuthResponse {
	t.Helper()
	resp := postJSON(t, ts, "/api/register", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts := startAPIServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterLoginVerify(t *testing.T) {
	ts := startAPIServer(t)

	created := registerUser(t, ts, "alice")
	if created.Token == "" || created.User.Username != "alice" {
		t.Fatalf("unexpected register response: %+v", created)
	}

	resp := postJSON(t, ts, "/api/login", "", LoginRequest{Login: "alice", Password: "password123"})
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var logged AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&logged); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	var verify struct {
		Valid    bool   `json:"valid"`
		Username string `json:"username"`
	}
	if status := getJSON(t, ts, "/api/verify", logged.Token, &verify); status != stdhttp.StatusOK {
		t.Fatalf("verify status %d", status)
	}
	if !verify.Valid || verify.Username != "alice" {
		t.Fatalf("unexpected verify response: %+v", verify)
	}

	if status := getJSON(t, ts, "/api/verify", "", nil); status != stdhttp.StatusUnauthorized {
		t.Fatalf("verify without token: status %d", status)
	}

	bad := postJSON(t, ts, "/api/login", "", LoginRequest{Login: "alice", Password: "wrong"})
	defer bad.Body.Close()
	if bad.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("bad login status %d", bad.StatusCode)
	}
}

func TestGuestSession(t *testing.T) {
	ts := startAPIServer(t)

	resp := postJSON(t, ts, "/api/guest", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("guest status %d", resp.StatusCode)
	}
	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode guest response: %v", err)
	}
	if !out.User.IsGuest || out.Token == "" {
		t.Fatalf("unexpected guest response: %+v", out)
	}

	var cookieSet bool
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" && c.Value != "" {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Fatal("session_token cookie not set")
	}
}

func TestRoomCatalogAPI(t *testing.T) {
	ts := startAPIServer(t)
	alice := registerUser(t, ts, "alice")

	// Creation requires authentication.
	anon := postJSON(t, ts, "/api/rooms", "", CreateRoomRequest{Version: "1.0.0"})
	defer anon.Body.Close()
	if anon.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("unauthenticated create: status %d", anon.StatusCode)
	}

	resp := postJSON(t, ts, "/api/rooms", alice.Token, CreateRoomRequest{Version: "1.0.0", Gamemode: "survival"})
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("create room status %d", resp.StatusCode)
	}
	var created RoomView
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created room: %v", err)
	}
	if created.ID == "" || created.HostUsername != "alice" || created.CurrentPlayers != 1 {
		t.Fatalf("unexpected created room: %+v", created)
	}

	var list struct {
		Rooms []RoomView `json:"rooms"`
	}
	if status := getJSON(t, ts, "/api/rooms", "", &list); status != stdhttp.StatusOK {
		t.Fatalf("list rooms status %d", status)
	}
	if len(list.Rooms) != 1 || list.Rooms[0].ID != created.ID {
		t.Fatalf("unexpected room list: %+v", list.Rooms)
	}
	if list.Rooms[0].IsFull {
		t.Fatal("one occupant of eight marked full")
	}

	if status := getJSON(t, ts, "/api/rooms?gamemode=sandbox", "", &list); status != stdhttp.StatusOK {
		t.Fatalf("filtered list status %d", status)
	}
	if len(list.Rooms) != 0 {
		t.Fatalf("gamemode filter leaked rooms: %+v", list.Rooms)
	}

	var got RoomView
	if status := getJSON(t, ts, "/api/rooms/"+created.ID, "", &got); status != stdhttp.StatusOK {
		t.Fatalf("get room status %d", status)
	}
	if got.Gamemode != "survival" {
		t.Fatalf("unexpected room: %+v", got)
	}

	if status := getJSON(t, ts, "/api/rooms/ZZZZZZ", "", nil); status != stdhttp.StatusNotFound {
		t.Fatalf("missing room status %d", status)
	}
}

func TestStatsAPI(t *testing.T) {
	ts := startAPIServer(t)
	registerUser(t, ts, "alice")

	var stats StatsView
	if status := getJSON(t, ts, "/api/stats/alice", "", &stats); status != stdhttp.StatusOK {
		t.Fatalf("stats status %d", status)
	}
	if stats.Username != "alice" || stats.MatchesPlayed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	var top struct {
		Stats []StatsView `json:"stats"`
	}
	if status := getJSON(t, ts, "/api/stats/top", "", &top); status != stdhttp.StatusOK {
		t.Fatalf("leaderboard status %d", status)
	}
	if len(top.Stats) != 1 {
		t.Fatalf("unexpected leaderboard: %+v", top.Stats)
	}

	if status := getJSON(t, ts, "/api/stats/nobody", "", nil); status != stdhttp.StatusNotFound {
		t.Fatalf("missing stats status %d", status)
	}
}

func TestWorldCatalogAPI(t *testing.T) {
	ts := startAPIServer(t)
	alice := registerUser(t, ts, "alice")

	resp := postJSON(t, ts, "/api/worlds", alice.Token, CreateWorldRequest{
		Name:    "Floating Isles",
		Version: "1.0.0",
		TBW:     "line1\nline2",
	})
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("create world status %d", resp.StatusCode)
	}
	var created WorldView
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created world: %v", err)
	}
	if created.Author != "alice" {
		t.Fatalf("unexpected world author: %+v", created)
	}

	var list struct {
		Worlds []WorldView `json:"worlds"`
	}
	if status := getJSON(t, ts, "/api/worlds", "", &list); status != stdhttp.StatusOK {
		t.Fatalf("list worlds status %d", status)
	}
	if len(list.Worlds) != 1 || list.Worlds[0].TBW != "" {
		t.Fatalf("listing leaked payload: %+v", list.Worlds)
	}

	var got WorldView
	path := "/api/worlds/" + strconv.FormatInt(created.ID, 10)
	if status := getJSON(t, ts, path, "", &got); status != stdhttp.StatusOK {
		t.Fatalf("get world status %d", status)
	}
	if got.TBW != "line1\nline2" {
		t.Fatalf("payload missing on fetch: %+v", got)
	}

	if status := getJSON(t, ts, "/api/worlds/search?q=Floating", "", &list); status != stdhttp.StatusOK {
		t.Fatalf("search status %d", status)
	}
	if len(list.Worlds) != 1 {
		t.Fatalf("unexpected search result: %+v", list.Worlds)
	}
}

func TestUserDirectoryAPI(t *testing.T) {
	ts := startAPIServer(t)
	registerUser(t, ts, "alice")
	registerUser(t, ts, "bob")

	var list struct {
		Users []UserView `json:"users"`
	}
	if status := getJSON(t, ts, "/api/users", "", &list); status != stdhttp.StatusOK {
		t.Fatalf("list users status %d", status)
	}
	if len(list.Users) != 2 {
		t.Fatalf("unexpected user list: %+v", list.Users)
	}

	// Fresh registrations have no login stamp yet; logging in marks the
	// account online.
	resp := postJSON(t, ts, "/api/login", "", LoginRequest{Login: "alice", Password: "password123"})
	resp.Body.Close()

	var online struct {
		Users []UserView `json:"users"`
		Count int        `json:"count"`
	}
	if status := getJSON(t, ts, "/api/users/online?window=5", "", &online); status != stdhttp.StatusOK {
		t.Fatalf("online users status %d", status)
	}
	if online.Count != 1 || online.Users[0].Username != "alice" {
		t.Fatalf("unexpected online list: %+v", online)
	}

	if status := getJSON(t, ts, "/api/users/online?window=bogus", "", nil); status != stdhttp.StatusBadRequest {
		t.Fatalf("bogus window status %d", status)
	}
}
