package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oprema/internal/auth"
	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/events"
	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

const testJWTSecret = "test-secret"

type session struct {
	token   string
	sesskey string
	userID  int64
}

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	hub    *events.Hub
	admin  session
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	hub := events.NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(NewRouter(database, testJWTSecret, hub))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if _, err := store.CreateUser(context.Background(), database, "admin", "Ana Admin", string(hash), model.RoleAdmin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	env := &testEnv{server: server, db: database, hub: hub}
	env.admin = env.login(t, "admin", "password")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) session {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(e.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var lr loginResponse
	json.NewDecoder(resp.Body).Decode(&lr)
	if lr.Token == "" || lr.SessKey == "" || lr.User == nil {
		t.Fatal("incomplete login response")
	}
	return session{token: lr.Token, sesskey: lr.SessKey, userID: lr.User.ID}
}

// do sends a JSON request with the session's token and session key.
func (e *testEnv) do(t *testing.T, method, path string, s session, body any) *http.Response {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.sesskey != "" {
		req.Header.Set(SesskeyHeader, s.sesskey)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) form(t *testing.T, s session, values url.Values) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("POST", e.server.URL+"/api/checkinout", strings.NewReader(values.Encode()))
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("checkinout: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

// seed creates a location and a product and takes one item in.
func (e *testEnv) seed(t *testing.T) (model.Holder, model.Product, model.Item) {
	t.Helper()
	var loc model.Holder
	resp := e.do(t, "POST", "/api/holders", e.admin, map[string]string{"name": "Library", "type": model.HolderTypeLocation})
	expectStatus(t, resp, http.StatusCreated)
	decode(t, resp, &loc)

	var product model.Product
	resp = e.do(t, "POST", "/api/products", e.admin, map[string]string{"name": "Chromebook", "upc": "012345678905"})
	expectStatus(t, resp, http.StatusCreated)
	decode(t, resp, &product)

	var item model.Item
	resp = e.do(t, "POST", "/api/equipment/intake", e.admin, map[string]int64{"product_id": product.ID, "location_id": loc.ID})
	expectStatus(t, resp, http.StatusCreated)
	decode(t, resp, &item)
	return loc, product, item
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := http.Get(env.server.URL + "/api/equipment")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSesskeyRequired(t *testing.T) {
	env := setupTestServer(t)
	body := map[string]string{"name": "Storage Room"}

	noKey := session{token: env.admin.token}
	resp := env.do(t, "POST", "/api/holders", noKey, body)
	expectStatus(t, resp, http.StatusForbidden)
	var errBody map[string]string
	decode(t, resp, &errBody)
	if errBody["code"] != "invalid_sesskey" {
		t.Errorf("expected invalid_sesskey, got %v", errBody)
	}

	wrongKey := session{token: env.admin.token, sesskey: "deadbeef"}
	expectStatus(t, env.do(t, "POST", "/api/holders", wrongKey, body), http.StatusForbidden)

	// A second login gets its own key; keys do not carry across sessions.
	other := env.login(t, "admin", "password")
	crossed := session{token: env.admin.token, sesskey: other.sesskey}
	expectStatus(t, env.do(t, "POST", "/api/holders", crossed, body), http.StatusForbidden)

	expectStatus(t, env.do(t, "POST", "/api/holders", env.admin, body), http.StatusCreated)

	// Reads need no key.
	expectStatus(t, env.do(t, "GET", "/api/holders", noKey, nil), http.StatusOK)
}

func TestFormSesskeyRespectsBodyLimit(t *testing.T) {
	token, sesskey, err := auth.GenerateToken(testJWTSecret, 1, "admin", model.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := auth.ValidateToken(testJWTSecret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	reached := false
	h := LimitBody(1024)(RequireSesskey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})))

	upload := func(size int) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("sesskey", sesskey)
		fw, _ := mw.CreateFormFile("image", "frame.png")
		fw.Write(bytes.Repeat([]byte{0xAB}, size))
		mw.Close()

		req := httptest.NewRequest("POST", "/api/scan", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req = req.WithContext(context.WithValue(req.Context(), claimsKey, claims))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := upload(64); rec.Code != http.StatusNoContent || !reached {
		t.Fatalf("expected small upload with form sesskey to pass, got %d", rec.Code)
	}

	reached = false
	rec := upload(4096)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if reached {
		t.Error("handler ran for an oversized body")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	expectStatus(t, env.do(t, "POST", "/api/auth/logout", env.admin, nil), http.StatusOK)
	expectStatus(t, env.do(t, "GET", "/api/equipment", env.admin, nil), http.StatusUnauthorized)
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	u, _ := store.CreateUser(context.Background(), env.db, "user1", "", string(hash), model.RoleUser)
	token, sesskey, _ := auth.GenerateToken(testJWTSecret, u.ID, "user1", model.RoleUser)
	user := session{token: token, sesskey: sesskey, userID: u.ID}

	resp := env.do(t, "POST", "/api/products", user, map[string]string{"name": "Test"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user creating product, got %d", resp.StatusCode)
	}

	resp = env.do(t, "GET", "/api/users", user, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user accessing users, got %d", resp.StatusCode)
	}

	resp = env.do(t, "POST", "/api/equipment/00000000-0000-4000-8000-000000000000/remove", user, map[string]string{"reason": "lost"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for user removing equipment, got %d", resp.StatusCode)
	}
}

func TestDeleteUserWithEquipment(t *testing.T) {
	env := setupTestServer(t)
	loc, _, item := env.seed(t)

	resp := env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"username": "borrower", "full_name": "Bo Borrower", "password": "password123", "role": model.RoleUser,
	})
	expectStatus(t, resp, http.StatusCreated)
	var user model.User
	decode(t, resp, &user)

	resp = env.do(t, "POST", "/api/equipment/"+item.UUID+"/assign", env.admin, map[string]int64{"user_id": user.ID})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), env.admin, nil)
	expectStatus(t, resp, http.StatusConflict)

	resp = env.do(t, "POST", "/api/equipment/"+item.UUID+"/transfer", env.admin, map[string]int64{"location_id": loc.ID})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), env.admin, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "GET", "/api/holders?type="+model.HolderTypePerson, env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	var people []model.Holder
	decode(t, resp, &people)
	for _, h := range people {
		if h.Name == "Bo Borrower" {
			t.Errorf("deleted user's holder still listed: %+v", h)
		}
	}

	resp = env.do(t, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), env.admin, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestEquipmentFlow(t *testing.T) {
	env := setupTestServer(t)
	loc, _, item := env.seed(t)

	if item.Status != model.ItemStatusAvailable || item.HolderName != "Library" {
		t.Fatalf("unexpected intake result %+v", item)
	}

	resp := env.do(t, "POST", "/api/equipment/"+item.UUID+"/assign", env.admin, map[string]int64{"user_id": env.admin.userID})
	expectStatus(t, resp, http.StatusOK)
	var detail model.ItemDetail
	decode(t, resp, &detail)
	if detail.Item.Status != model.ItemStatusCheckedOut || detail.Item.HolderName != "Ana Admin" {
		t.Errorf("expected checked out to Ana Admin, got %s/%s", detail.Item.Status, detail.Item.HolderName)
	}

	resp = env.do(t, "POST", "/api/equipment/"+item.UUID+"/transfer", env.admin, map[string]int64{"location_id": loc.ID})
	expectStatus(t, resp, http.StatusOK)

	resp = env.do(t, "POST", "/api/equipment/"+item.UUID+"/remove", env.admin, map[string]string{"reason": "damaged"})
	expectStatus(t, resp, http.StatusOK)
	var first inventory.RemovalResult
	decode(t, resp, &first)
	if !first.Success {
		t.Fatalf("expected first removal to succeed: %+v", first)
	}

	resp = env.do(t, "POST", "/api/equipment/"+item.UUID+"/remove", env.admin, map[string]string{"reason": "lost"})
	expectStatus(t, resp, http.StatusOK)
	var second inventory.RemovalResult
	decode(t, resp, &second)
	if second.Success || second.Code != inventory.CodeAlreadyRemoved {
		t.Errorf("expected already_removed failure, got %+v", second)
	}

	resp = env.do(t, "GET", "/api/equipment/"+item.UUID+"/history", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	var history []model.Transaction
	decode(t, resp, &history)
	removals := 0
	for _, tx := range history {
		if tx.Type == model.TxRemoval {
			removals++
			if tx.Notes != "damaged" {
				t.Errorf("expected removal notes 'damaged', got %q", tx.Notes)
			}
		}
	}
	if removals != 1 {
		t.Errorf("expected 1 removal transaction, got %d", removals)
	}

	resp = env.do(t, "POST", "/api/equipment/"+item.UUID+"/assign", env.admin, map[string]int64{"user_id": env.admin.userID})
	expectStatus(t, resp, http.StatusConflict)
}

func TestRemoveUnknownEquipment(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/equipment/00000000-0000-4000-8000-000000000000/remove", env.admin, map[string]string{"reason": "lost"})
	expectStatus(t, resp, http.StatusNotFound)
	var body map[string]string
	decode(t, resp, &body)
	if body["code"] != inventory.CodeItemNotFound || !strings.Contains(body["error"], "not exist") {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestServiceMethods(t *testing.T) {
	env := setupTestServer(t)
	_, product, item := env.seed(t)

	call := func(method string, args ServiceArgs) *http.Response {
		return env.do(t, "POST", "/api/service", env.admin, ServiceCall{MethodName: method, Args: args})
	}

	resp := call(MethodLookupEquipment, ServiceArgs{UUID: item.UUID})
	expectStatus(t, resp, http.StatusOK)

	resp = call(MethodValidateRemoval, ServiceArgs{UUID: item.UUID})
	expectStatus(t, resp, http.StatusOK)
	var check inventory.RemovalCheck
	decode(t, resp, &check)
	if !check.Valid {
		t.Errorf("expected removal to be valid: %+v", check)
	}

	resp = call(MethodProcessScan, ServiceArgs{Code: product.UPC})
	expectStatus(t, resp, http.StatusOK)
	var scan inventory.ScanResult
	decode(t, resp, &scan)
	if scan.UPC == nil || len(scan.UPC.Items) != 1 {
		t.Errorf("expected one item for UPC, got %+v", scan)
	}

	resp = call(MethodProcessScan, ServiceArgs{Code: "not a barcode"})
	expectStatus(t, resp, http.StatusBadRequest)
	var body map[string]string
	decode(t, resp, &body)
	if body["code"] != inventory.CodeInvalidBarcodeType {
		t.Errorf("expected invalid_barcode_type, got %v", body)
	}

	expectStatus(t, call("local_equipment_nope", ServiceArgs{}), http.StatusNotFound)
}

func TestCheckInOut(t *testing.T) {
	env := setupTestServer(t)
	loc, _, item := env.seed(t)

	resp := env.form(t, env.admin, url.Values{"action": {ActionSearchUsers}, "query": {"ana"}})
	expectStatus(t, resp, http.StatusForbidden)

	base := url.Values{"sesskey": {env.admin.sesskey}}
	with := func(kv ...string) url.Values {
		v := url.Values{}
		for k, vals := range base {
			v[k] = vals
		}
		for i := 0; i+1 < len(kv); i += 2 {
			v.Set(kv[i], kv[i+1])
		}
		return v
	}

	resp = env.form(t, env.admin, with("action", ActionSearchUsers, "query", "ana"))
	expectStatus(t, resp, http.StatusOK)
	var users struct {
		Success bool        `json:"success"`
		Users   []UserMatch `json:"users"`
	}
	decode(t, resp, &users)
	if len(users.Users) != 1 || users.Users[0].FullName != "Ana Admin" {
		t.Errorf("unexpected search result %+v", users)
	}

	resp = env.form(t, env.admin, with("action", ActionGetLocations))
	expectStatus(t, resp, http.StatusOK)

	resp = env.form(t, env.admin, with("action", ActionUpdateAssignment, "uuid", item.UUID,
		"assignment_type", AssignToUser, "user_id", fmt.Sprint(env.admin.userID)))
	expectStatus(t, resp, http.StatusOK)

	resp = env.form(t, env.admin, with("action", ActionUpdateAssignment, "uuid", item.UUID, "assignment_type", AssignNone))
	expectStatus(t, resp, http.StatusOK)
	var updated struct {
		Item model.ItemDetail `json:"item"`
	}
	decode(t, resp, &updated)
	if h := updated.Item.Item.HolderID; h == nil || *h != loc.ID {
		t.Errorf("expected item back at library, got %v", h)
	}

	resp = env.form(t, env.admin, with("action", ActionUpdateNotes, "uuid", item.UUID, "notes", "missing charger"))
	expectStatus(t, resp, http.StatusOK)

	resp = env.form(t, env.admin, with("action", "explode"))
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestScanUpload(t *testing.T) {
	env := setupTestServer(t)
	_, _, item := env.seed(t)

	png, err := qrcode.Encode(item.UUID, qrcode.Medium, 400)
	if err != nil {
		t.Fatalf("encoding QR: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("image", "frame.png")
	fw.Write(png)
	mw.Close()

	req, _ := http.NewRequest("POST", env.server.URL+"/api/scan", &buf)
	req.Header.Set("Authorization", "Bearer "+env.admin.token)
	req.Header.Set(SesskeyHeader, env.admin.sesskey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("scan request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var sr scanResponse
	decode(t, resp, &sr)
	if sr.Detection.Text != item.UUID || sr.Result == nil || sr.Result.Detail == nil {
		t.Errorf("unexpected scan response %+v", sr)
	}
}

func TestPrintQueue(t *testing.T) {
	env := setupTestServer(t)
	_, _, item := env.seed(t)

	resp := env.do(t, "GET", "/api/printqueue", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	var jobs []model.PrintJob
	decode(t, resp, &jobs)
	if len(jobs) != 1 || jobs[0].UUID != item.UUID {
		t.Fatalf("expected the intake label queued, got %+v", jobs)
	}

	resp = env.do(t, "GET", "/api/printqueue/sheet.pdf", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", ct)
	}

	resp = env.do(t, "GET", "/api/equipment/"+item.UUID+"/label.png", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}

	resp = env.do(t, "DELETE", "/api/printqueue", env.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	var marked map[string]int
	decode(t, resp, &marked)
	if marked["marked"] != 1 {
		t.Errorf("expected 1 label marked, got %v", marked)
	}
}

func TestEventsFeed(t *testing.T) {
	env := setupTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/events?token=" + url.QueryEscape(env.admin.token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing events: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("station never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, _, item := env.seed(t)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Transaction == nil || ev.Transaction.Type != model.TxIntake || ev.Transaction.ItemUUID != item.UUID {
		t.Errorf("unexpected event %+v", ev)
	}
}
