package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/models"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
)

func TestStatusOf(t *testing.T) {
	cases := map[int]error{
		404: ErrNotFound("x"),
		409: ErrConflict("x"),
		422: ErrUnprocessable("x"),
		401: WrapError(ErrUnauthorized("x"), "login"),
		500: errors.New("boom"),
	}
	for want, err := range cases {
		if got := StatusOf(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
	if WrapError(nil, "x") != nil {
		t.Fatalf("wrapping nil must stay nil")
	}
}

func TestPasswordHasher(t *testing.T) {
	var h PasswordHasher
	hashed, err := h.Hash("Secreta123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hashed, "$argon2id$") || strings.Contains(hashed, "Secreta123") {
		t.Fatalf("unexpected hash %q", hashed)
	}
	if !h.Verify("Secreta123", hashed) || h.Verify("secreta123", hashed) {
		t.Fatalf("argon2id verification mismatch")
	}
	legacy, err := bcrypt.GenerateFromPassword([]byte("antigua"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !h.Verify("antigua", string(legacy)) || h.Verify("otra", string(legacy)) {
		t.Fatalf("bcrypt verification mismatch")
	}
	if h.Verify("x", "$argon2id$v=19$m=0,t=0,p=0$$") {
		t.Fatalf("malformed hash must not verify")
	}
}

func TestTokenService(t *testing.T) {
	tokens := TokenService{Secret: []byte("secret"), Issuer: "cargamasiva", AccessTTL: time.Minute}
	signed, exp, err := tokens.CreateAccessToken("123456785", "s1", []string{RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if exp <= time.Now().Unix() {
		t.Fatalf("expiry in the past")
	}
	claims, err := tokens.VerifyAccess(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.RUT != "123456785" || claims.SessionID != "s1" || !HasRole(claims.Roles, "administrador") {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := TokenService{Secret: []byte("other"), Issuer: "cargamasiva", AccessTTL: time.Minute}
	if _, err := other.VerifyAccess(signed); StatusOf(err) != 401 {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}
	expired := TokenService{Secret: []byte("secret"), Issuer: "cargamasiva", AccessTTL: -time.Minute}
	old, _, _ := expired.CreateAccessToken("123456785", "", nil)
	if _, err := tokens.VerifyAccess(old); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestRoleCatalog(t *testing.T) {
	roles := make([]models.Role, len(DefaultRoles))
	copy(roles, DefaultRoles)
	for i := range roles {
		roles[i].ID = int64(len(roles) - i)
	}
	catalog := NewRoleCatalog(roles)

	r, ok, err := catalog.RoleByCode(context.Background(), " tesorero ")
	if err != nil || !ok || !r.RequiresCourse || !r.UniquePerCourse {
		t.Fatalf("unexpected lookup %+v %v %v", r, ok, err)
	}
	if _, ok, _ := catalog.RoleByCode(context.Background(), "director"); ok {
		t.Fatalf("unknown code must not resolve")
	}
	codes := catalog.Codes()
	if len(codes) != 5 || codes[0] != "alumno" || codes[4] != "administrador" {
		t.Fatalf("expected codes ordered by id, got %v", codes)
	}
}

func sampleBatch() *bulkimport.BatchResult {
	return &bulkimport.BatchResult{
		ID:        "b1",
		Success:   true,
		RowsTotal: 1,
		Created:   1,
		GeneratedCredentials: []bulkimport.GeneratedCredential{
			{Identifier: "12.345.678-5", TemporaryPassword: "Xy7pQr2k"},
		},
	}
}

func TestMemoryReportStore(t *testing.T) {
	store := NewMemoryReportStore(time.Hour)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	result := sampleBatch()
	id, err := store.Save(context.Background(), result)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(result.GeneratedCredentials) != 1 {
		t.Fatalf("saving must not modify the caller's result")
	}
	loaded, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ReportID != id || loaded.Created != 1 || len(loaded.GeneratedCredentials) != 0 {
		t.Fatalf("unexpected stored report %+v", loaded)
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Load(context.Background(), id); StatusOf(err) != 404 {
		t.Fatalf("expected expired report, got %v", err)
	}
}

func TestRedisReportStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if os.Getenv("INTEGRATION_TESTS") != "1" || url == "" {
		t.Skip("set INTEGRATION_TESTS=1 and REDIS_URL to run against Redis")
	}
	store, err := NewReportStore(url, time.Minute)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	id, err := store.Save(context.Background(), sampleBatch())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(context.Background(), id)
	if err != nil || loaded.ID != "b1" || len(loaded.GeneratedCredentials) != 0 {
		t.Fatalf("unexpected report %+v %v", loaded, err)
	}
	if _, err := store.Load(context.Background(), "missing"); StatusOf(err) != 404 {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	up, err := SaveUpload(dir, ".csv", strings.NewReader("rut,nombres\n"), 64)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(up.Path) != ".csv" || up.Size != 12 || len(up.SHA256) != 64 {
		t.Fatalf("unexpected upload %+v", up)
	}
	RemoveUpload(up)
	if _, err := os.Stat(up.Path); !os.IsNotExist(err) {
		t.Fatalf("expected upload removed")
	}

	if _, err := SaveUpload(dir, ".csv", strings.NewReader(""), 64); StatusOf(err) != 400 {
		t.Fatalf("expected empty upload rejected, got %v", err)
	}
	if _, err := SaveUpload(dir, ".csv", strings.NewReader(strings.Repeat("x", 65)), 64); StatusOf(err) != 400 {
		t.Fatalf("expected oversize upload rejected, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not stay on disk, found %d", len(entries))
	}
}

func TestApplyLogin(t *testing.T) {
	var h PasswordHasher
	hashed, err := h.Hash("Correcta1")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	cred := models.NewCredential("123456785", hashed)

	for i := 1; i < models.MaxFailedAttempts; i++ {
		if err := applyLogin(&cred, h, "mala", models.Session{ID: "x"}, now); StatusOf(err) != 401 {
			t.Fatalf("attempt %d: expected 401, got %v", i, err)
		}
	}
	if err := applyLogin(&cred, h, "mala", models.Session{}, now); StatusOf(err) != 403 {
		t.Fatalf("expected lockout on the last attempt, got %v", err)
	}
	if err := applyLogin(&cred, h, "Correcta1", models.Session{}, now.Add(time.Minute)); StatusOf(err) != 403 {
		t.Fatalf("locked credential must refuse a correct password, got %v", err)
	}

	later := now.Add(models.LockoutDuration + time.Second)
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := applyLogin(&cred, h, "Correcta1", models.Session{ID: id}, later); err != nil {
			t.Fatalf("login %s: %v", id, err)
		}
	}
	if cred.FailedAttempts != 0 || cred.LockedUntil != nil || cred.LastAccess == nil {
		t.Fatalf("success must reset the lockout state: %+v", cred)
	}
	if len(cred.Sessions) != models.MaxSessions || cred.Sessions[0].ID != "b" {
		t.Fatalf("expected oldest session evicted, got %+v", cred.Sessions)
	}

	cred.Active = false
	if err := applyLogin(&cred, h, "Correcta1", models.Session{}, later); StatusOf(err) != 403 {
		t.Fatalf("inactive credential must be refused, got %v", err)
	}
}

func TestProgressHubBroadcast(t *testing.T) {
	hub := NewProgressHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(bulkimport.Progress{BatchID: "b1", Row: 2, Processed: 1, Created: 1})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got bulkimport.Progress
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.BatchID != "b1" || got.Processed != 1 || got.Created != 1 {
		t.Fatalf("unexpected event %+v", got)
	}
}
