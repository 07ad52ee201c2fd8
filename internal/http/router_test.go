package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reefline/go-catchlog-backend/internal/config"
	"github.com/reefline/go-catchlog-backend/internal/domain"
	"github.com/reefline/go-catchlog-backend/internal/push"
	"github.com/reefline/go-catchlog-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:       "/api/v1",
		NotificationLimit: 50,
		DedupeWindow:      time.Minute,
		AdminCacheTTL:     5 * time.Minute,
		CommentLimit:      config.ActionLimit{MaxAttempts: 10, Window: 10 * time.Minute},
		ReportLimit:       config.ActionLimit{MaxAttempts: 5, Window: time.Hour},
		RateRPS:           100,
		RateBurst:         50,
		Security:          config.SecurityConfig{},
		OTEL:              config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB, *push.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	hub := push.NewHub()
	t.Cleanup(hub.Close)
	RegisterRoutes(r, db, hub, cfg)
	return r, db, hub
}

func TestRegisterRoutes_HealthMetricsAndFallbacks(t *testing.T) {
	r, _, _ := newTestRouter(t, testConfig())

	// /health works and the allow-all CORS branch emits ACAO *
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404 with the error envelope
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 body not JSON: %v", err)
	}
	if body["code"] != "not_found" {
		t.Fatalf("404 envelope code = %v", body["code"])
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOriginsEchoesAllowlisted(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	r, _, _ := newTestRouter(t, cfg)

	// Allowlisted origin is echoed back with Vary: Origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected echoed origin, got %q", got)
	}

	// Unknown origin gets no ACAO.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no ACAO for unknown origin, got %q", got)
	}
}

func TestRegisterRoutes_NotificationEndpointsWired(t *testing.T) {
	r, db, _ := newTestRouter(t, testConfig())

	now := time.Now().UTC()
	seed := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    "u1",
		Type:      domain.TypeNewFollower,
		ActorID:   strp("u2"),
		Message:   "u2 followed you",
		DedupeKey: uuid.NewString(),
		CreatedAt: now,
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	// List requires identity
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d, want 401", w.Code)
	}

	// Authenticated list returns the seeded row
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, body=%s", w.Code, w.Body.String())
	}

	// Mark it read, then clear everything.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/notifications/"+seed.ID+"/read", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("mark read = %d, body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/notifications", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d, body=%s", w.Code, w.Body.String())
	}

	var count int64
	if err := db.Model(&domain.Notification{}).Where("user_id = ?", "u1").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("notifications remaining after clear: %d", count)
	}
}

func TestRegisterRoutes_CommentFlowEndToEnd(t *testing.T) {
	r, db, _ := newTestRouter(t, testConfig())

	now := time.Now().UTC()
	owner := domain.Profile{ID: "owner", Username: "reef_owner", CreatedAt: now, UpdatedAt: now}
	actor := domain.Profile{ID: "u1", Username: "angler_jane", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := db.Create(&actor).Error; err != nil {
		t.Fatalf("seed actor: %v", err)
	}
	catch := domain.Catch{ID: uuid.NewString(), UserID: "owner", Species: "bass", Title: "morning bass", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(&catch).Error; err != nil {
		t.Fatalf("seed catch: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/catches/"+catch.ID+"/comments",
		strings.NewReader(`{"body":"what a fish"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("post comment = %d, body=%s", w.Code, w.Body.String())
	}

	// The catch owner received a notification for the comment.
	var notifs []domain.Notification
	if err := db.Where("user_id = ?", "owner").Find(&notifs).Error; err != nil {
		t.Fatalf("list owner notifications: %v", err)
	}
	if len(notifs) != 1 || notifs[0].Type != domain.TypeNewComment {
		t.Fatalf("owner notifications = %+v", notifs)
	}
}

func strp(s string) *string { return &s }

// closeNotifyRecorder adds the http.CloseNotifier method required by
// gin.Context.Stream; httptest.ResponseRecorder alone does not implement it.
type closeNotifyRecorder struct{ *httptest.ResponseRecorder }

func (closeNotifyRecorder) CloseNotify() <-chan bool { return make(chan bool) }

func TestRegisterRoutes_StreamBackedBySessionCache(t *testing.T) {
	r, db, hub := newTestRouter(t, testConfig())

	seed := &domain.Notification{
		ID:      "seeded",
		UserID:  "u1",
		Type:    domain.TypeNewFollower,
		Message: "welcome aboard",
	}
	if err := repo.CreateNotification(context.Background(), db, seed, time.Minute); err != nil {
		t.Fatalf("seed notification: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/stream", nil).WithContext(ctx)
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(closeNotifyRecorder{w}, req)
		close(done)
	}()

	// Let the session seed its cache from the database, then replay the
	// stored row alongside a genuinely new one. Only the new row may hit
	// the wire; the recorder body is read only after the handler returns.
	time.Sleep(150 * time.Millisecond)
	hub.Publish(domain.Notification{ID: "seeded", UserID: "u1", Type: domain.TypeNewFollower, Message: "welcome aboard"})
	hub.Publish(domain.Notification{ID: "live", UserID: "u1", Type: domain.TypeNewComment, Message: "fresh ping"})
	time.Sleep(150 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return on disconnect")
	}

	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content-type = %q", got)
	}
	body := w.Body.String()
	if !strings.Contains(body, "live") {
		t.Errorf("body = %q, want the new row emitted", body)
	}
	if strings.Contains(body, "seeded") {
		t.Errorf("body = %q, replay of a stored row must be suppressed", body)
	}
}
