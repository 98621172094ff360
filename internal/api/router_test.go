package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rental-marketplace/backend/internal/api"
	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/auth"
	"github.com/rental-marketplace/backend/internal/booking"
	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/events"
	"github.com/rental-marketplace/backend/internal/inbox"
	"github.com/rental-marketplace/backend/internal/logger"
	"github.com/rental-marketplace/backend/internal/messaging"
	"github.com/rental-marketplace/backend/internal/realtime"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
	"github.com/rental-marketplace/backend/internal/testutil"
	"github.com/rental-marketplace/backend/internal/validation"
	"github.com/rental-marketplace/backend/internal/wallet"
)

const testSecret = "router-test-signing-secret"

type testServer struct {
	srv    *httptest.Server
	repos  *storage.Repositories
	tokens *auth.Tokens
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := clock.NewSystem()
	db, repos := testutil.NewTestRepos(t, clk)
	log := logger.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(log)
	go hub.Run(ctx)
	t.Cleanup(cancel)

	notifier := realtime.NewNotifier(hub, log)
	v := validation.New()
	ledger := wallet.NewLedger(db, repos.Wallets)
	tokens := auth.NewTokens(testSecret, time.Hour, clk)

	router := api.NewRouter(api.Deps{
		DB:     db,
		Repos:  repos,
		Hub:    hub,
		Tokens: tokens,
		Booking: booking.NewService(booking.Deps{
			DB:       db,
			Repos:    repos,
			Ledger:   ledger,
			Notifier: notifier,
			Events:   events.NewEmitter(events.NewNop(), log, clk.Now),
			Clock:    clk,
			Log:      log,
		}, booking.Options{}),
		Ledger:    ledger,
		Inbox:     inbox.NewService(repos, notifier, v, log),
		Messaging: messaging.NewService(db, repos, notifier, v, log),
		Validator: v,
		Log:       log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, repos: repos, tokens: tokens}
}

func (ts *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := ts.tokens.Issue(u.ID, u.Role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, apiResponse, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out apiResponse
	_ = json.Unmarshal(raw.Bytes(), &out)
	return resp.StatusCode, out, raw.Bytes()
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, resp, _ := ts.do(t, "GET", "/api/health", "", nil)
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("expected healthy response, got %d %+v", status, resp)
	}
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.InsertUser(t, ts.repos, "alice")

	expired, err := auth.NewTokens(testSecret, time.Hour, clock.NewFixed(time.Now().Add(-2*time.Hour))).Issue(user.ID, user.Role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	forged, err := auth.NewTokens("some-other-signing-secret", time.Hour, nil).Issue(user.ID, user.Role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ghost, err := ts.tokens.Issue("no-such-user", models.RoleUser)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"wrong signature", forged, http.StatusUnauthorized},
		{"deleted user", ghost, http.StatusUnauthorized},
		{"valid", ts.token(t, user), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp, _ := ts.do(t, "GET", "/api/wallet", tt.token, nil)
			if status != tt.status {
				t.Fatalf("expected %d, got %d (%+v)", tt.status, status, resp)
			}
			if status == http.StatusUnauthorized && resp.Code != apperror.CodeUnauthorized {
				t.Fatalf("expected UNAUTHORIZED code, got %q", resp.Code)
			}
		})
	}
}

func TestCreateUser(t *testing.T) {
	ts := newTestServer(t)

	status, resp, _ := ts.do(t, "POST", "/api/users", "", map[string]string{"name": "Dana", "email": "Dana@Example.com"})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%+v)", status, resp)
	}
	var u models.User
	if err := json.Unmarshal(resp.Data, &u); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if u.Email != "dana@example.com" || u.Role != models.RoleUser {
		t.Fatalf("unexpected user %+v", u)
	}

	status, resp, _ = ts.do(t, "POST", "/api/users", "", map[string]string{"name": "Dana", "email": "dana@example.com"})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", status)
	}

	status, resp, _ = ts.do(t, "POST", "/api/users", "", map[string]string{"name": "", "email": "nope"})
	if status != http.StatusUnprocessableEntity || resp.Code != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %d %+v", status, resp)
	}
}

func TestReservationFlow(t *testing.T) {
	ts := newTestServer(t)
	host := testutil.InsertUser(t, ts.repos, "host")
	guest := testutil.InsertUser(t, ts.repos, "guest")
	listing := testutil.InsertListing(t, ts.repos, host.ID, 100)
	guestToken := ts.token(t, guest)

	body := map[string]any{
		"listingId":  listing.ID,
		"startDate":  "2026-07-01",
		"endDate":    "2026-07-04",
		"totalPrice": 300,
		"orderId":    "order-1",
	}
	status, resp, _ := ts.do(t, "POST", "/api/reservations", guestToken, body)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%+v)", status, resp)
	}
	var booked models.ListingWithReservations
	if err := json.Unmarshal(resp.Data, &booked); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(booked.Reservations) != 1 {
		t.Fatalf("expected one reservation, got %d", len(booked.Reservations))
	}
	resID := booked.Reservations[0].ID

	body["orderId"] = "order-2"
	body["startDate"] = "2026-07-04"
	body["endDate"] = "2026-07-06"
	status, resp, _ = ts.do(t, "POST", "/api/reservations", guestToken, body)
	if status != http.StatusConflict || resp.Error != booking.DatesUnavailableMessage {
		t.Fatalf("expected overlap conflict, got %d %+v", status, resp)
	}

	status, resp, _ = ts.do(t, "GET", "/api/listings/"+listing.ID+"/availability?startDate=2026-07-02&endDate=2026-07-03", "", nil)
	if status != http.StatusOK {
		t.Fatalf("availability: %d %+v", status, resp)
	}
	var avail struct {
		Available bool               `json:"available"`
		Conflicts []booking.Conflict `json:"conflicts"`
	}
	if err := json.Unmarshal(resp.Data, &avail); err != nil {
		t.Fatalf("decode availability: %v", err)
	}
	if avail.Available || len(avail.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", avail)
	}

	status, _, _ = ts.do(t, "GET", "/api/listings/"+listing.ID+"/availability?startDate=bad&endDate=2026-07-03", "", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", status)
	}

	status, resp, _ = ts.do(t, "GET", "/api/reservations/host", ts.token(t, host), nil)
	if status != http.StatusOK {
		t.Fatalf("host reservations: %d", status)
	}
	var hosted []models.Reservation
	if err := json.Unmarshal(resp.Data, &hosted); err != nil || len(hosted) != 1 {
		t.Fatalf("expected one hosted reservation, got %d (%v)", len(hosted), err)
	}

	status, _, ics := ts.do(t, "GET", "/api/listings/"+listing.ID+"/calendar.ics", ts.token(t, host), nil)
	if status != http.StatusOK || !strings.Contains(string(ics), "DTSTART;VALUE=DATE:20260701") {
		t.Fatalf("expected calendar feed, got %d %s", status, ics)
	}
	if status, _, _ = ts.do(t, "GET", "/api/listings/"+listing.ID+"/calendar.ics", guestToken, nil); status != http.StatusForbidden {
		t.Fatalf("expected guest to be refused the feed, got %d", status)
	}

	status, _, raw := ts.do(t, "DELETE", "/api/reservations/"+resID, guestToken, nil)
	if status != http.StatusOK {
		t.Fatalf("cancel: %d %s", status, raw)
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode cancel result: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("expected bare success result, got %s", raw)
	}
	if _, ok := result["data"]; ok {
		t.Fatalf("cancel result must not be wrapped, got %s", raw)
	}
	if _, ok := result["refundedAmount"]; !ok {
		t.Fatalf("expected refundedAmount, got %s", raw)
	}

	status, resp, _ = ts.do(t, "DELETE", "/api/reservations/"+resID, guestToken, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 on second cancel, got %d %+v", status, resp)
	}

	status, resp, _ = ts.do(t, "GET", "/api/wallet", guestToken, nil)
	if status != http.StatusOK {
		t.Fatalf("wallet: %d", status)
	}
	var stmt wallet.Statement
	if err := json.Unmarshal(resp.Data, &stmt); err != nil {
		t.Fatalf("decode statement: %v", err)
	}
	if stmt.Wallet == nil || !stmt.Wallet.Balance.Equal(wallet.LedgerBalance(stmt.Transactions)) || len(stmt.Transactions) != 1 {
		t.Fatalf("unexpected statement %+v", stmt)
	}
}

func TestListingEndpoints(t *testing.T) {
	ts := newTestServer(t)
	owner := testutil.InsertUser(t, ts.repos, "owner")
	other := testutil.InsertUser(t, ts.repos, "other")

	status, resp, _ := ts.do(t, "POST", "/api/listings", ts.token(t, owner), map[string]any{
		"title":    "Lake cabin",
		"category": "Lake",
		"price":    120,
	})
	if status != http.StatusCreated {
		t.Fatalf("create listing: %d %+v", status, resp)
	}
	var listing models.Listing
	if err := json.Unmarshal(resp.Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}

	status, resp, _ = ts.do(t, "GET", "/api/listings?category=Lake", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list listings: %d", status)
	}
	var listings []models.Listing
	if err := json.Unmarshal(resp.Data, &listings); err != nil || len(listings) != 1 {
		t.Fatalf("expected one listing, got %d (%v)", len(listings), err)
	}

	status, resp, _ = ts.do(t, "DELETE", "/api/listings/"+listing.ID, ts.token(t, other), nil)
	if status != http.StatusForbidden || resp.Code != apperror.CodeForbidden {
		t.Fatalf("expected forbidden delete, got %d %+v", status, resp)
	}

	status, resp, _ = ts.do(t, "DELETE", "/api/listings/"+listing.ID, ts.token(t, owner), nil)
	if status != http.StatusOK {
		t.Fatalf("delete listing: %d %+v", status, resp)
	}

	status, _, _ = ts.do(t, "GET", "/api/listings/"+listing.ID, "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestAdminNotificationsRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.InsertUser(t, ts.repos, "user")
	admin := testutil.InsertAdmin(t, ts.repos, "root")

	body := map[string]string{"userId": user.ID, "message": "Welcome aboard"}

	status, resp, _ := ts.do(t, "POST", "/api/admin/notifications", ts.token(t, user), body)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d %+v", status, resp)
	}

	status, resp, _ = ts.do(t, "POST", "/api/admin/notifications", ts.token(t, admin), body)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d %+v", status, resp)
	}

	userToken := ts.token(t, user)
	status, resp, _ = ts.do(t, "GET", "/api/notifications/unseen", userToken, nil)
	if status != http.StatusOK || string(resp.Data) != `{"count":1}` {
		t.Fatalf("expected one unseen notification, got %d %s", status, resp.Data)
	}

	if status, _, _ = ts.do(t, "POST", "/api/notifications/seen", userToken, nil); status != http.StatusOK {
		t.Fatalf("mark seen: %d", status)
	}
	_, resp, _ = ts.do(t, "GET", "/api/notifications/unseen", userToken, nil)
	if string(resp.Data) != `{"count":0}` {
		t.Fatalf("expected zero unseen after marking, got %s", resp.Data)
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	status, resp, _ := ts.do(t, "GET", "/api/nothing-here", "", nil)
	if status != http.StatusNotFound || resp.Code != apperror.CodeNotFound {
		t.Fatalf("expected enveloped 404, got %d %+v", status, resp)
	}
}

func dialWS(t *testing.T, ts *testServer, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial websocket (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) realtime.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f struct {
		realtime.Frame
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	f.Frame.Payload = f.Payload
	return f.Frame
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	ts := newTestServer(t)
	guest := testutil.InsertUser(t, ts.repos, "guest")
	admin := testutil.InsertAdmin(t, ts.repos, "root")
	conn := dialWS(t, ts, ts.token(t, guest))

	send := func(cmd realtime.Command) {
		t.Helper()
		if err := conn.WriteJSON(cmd); err != nil {
			t.Fatalf("write command: %v", err)
		}
	}

	send(realtime.Command{Type: realtime.TypePing})
	if f := readFrame(t, conn); f.Type != realtime.TypePong {
		t.Fatalf("expected pong, got %+v", f)
	}

	send(realtime.Command{Type: realtime.TypeSubscribe, Channel: realtime.UserNotificationsChannel(admin.Email)})
	if f := readFrame(t, conn); f.Type != realtime.TypeError {
		t.Fatalf("expected error for another user's channel, got %+v", f)
	}

	send(realtime.Command{Type: realtime.TypeSubscribe, Channel: "not-a-conversation"})
	if f := readFrame(t, conn); f.Type != realtime.TypeError {
		t.Fatalf("expected error for non-participant channel, got %+v", f)
	}

	own := realtime.UserNotificationsChannel(guest.Email)
	send(realtime.Command{Type: realtime.TypeSubscribe, Channel: own})
	if f := readFrame(t, conn); f.Type != realtime.TypeSubscribeAck || f.Channel != own {
		t.Fatalf("expected subscribe ack, got %+v", f)
	}

	status, resp, _ := ts.do(t, "POST", "/api/admin/notifications", ts.token(t, admin), map[string]string{
		"userId":  guest.ID,
		"message": "Your payout is ready",
	})
	if status != http.StatusCreated {
		t.Fatalf("send notification: %d %+v", status, resp)
	}

	f := readFrame(t, conn)
	if f.Type != realtime.TypeEvent || f.Event != realtime.EventNotificationNew || f.Channel != own {
		t.Fatalf("expected notification event, got %+v", f)
	}
	var n models.Notification
	if err := json.Unmarshal(f.Payload.(json.RawMessage), &n); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if n.Message != "Your payout is ready" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestWebSocket_RequiresToken(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
