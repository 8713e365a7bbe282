package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"numberrush/game"
	"numberrush/handlers"
	"numberrush/models"
	"numberrush/protocol"
	"numberrush/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := services.NewAuthService(nil, "test-secret", time.Hour)
	mm := services.NewMatchmaker(game.DefaultRules(), nil, nil)
	leaderboard := services.NewLeaderboardService(nil)
	hub := services.NewHub(mm, leaderboard)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	SetupRoutes(router,
		handlers.NewAuthHandler(auth, nil),
		handlers.NewLeaderboardHandler(leaderboard),
		handlers.NewMatchHandler(mm, nil),
		hub,
		auth,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		mm.Shutdown()
		cancel()
	})
	return srv, auth
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Inbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var in protocol.Inbound
	if err := conn.ReadJSON(&in); err != nil {
		t.Fatalf("read: %v", err)
	}
	return in
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWebsocketRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWebsocketJoinAndSingleConnection(t *testing.T) {
	srv, auth := newTestServer(t)
	token, err := auth.GenerateToken(&models.Account{ID: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.New(protocol.TypeJoinRequest, nil)); err != nil {
		t.Fatalf("write: %v", err)
	}
	in := readMessage(t, conn)
	if in.Type != protocol.TypeJoinAck {
		t.Fatalf("first message = %s, want JOIN_ACK", in.Type)
	}
	var ack protocol.JoinAck
	if err := json.Unmarshal(in.Payload, &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.CurrentPlayers != 1 || ack.MatchID == "" {
		t.Fatalf("ack = %+v", ack)
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second connection accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("second connection response = %+v", resp)
	}

	if err := conn.WriteJSON(protocol.New(protocol.TypePing, nil)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	for {
		if in := readMessage(t, conn); in.Type == protocol.TypePong {
			break
		}
	}
}
