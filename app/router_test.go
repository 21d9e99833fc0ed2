package app

import (
	"bytes"
	"clipper/api/config"
	"clipper/api/db"
	"clipper/api/internal"
	"clipper/api/internal/model"
	"clipper/api/internal/service"
	"clipper/api/internal/workflow"
	"clipper/api/pkg/middleware"
	"clipper/api/pkg/security"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const webhookSecret = "whsec_test"

type fakeStorage struct {
	mu   sync.Mutex
	gets int
	puts []string
	ttl  time.Duration
}

func (f *fakeStorage) PresignPut(_ context.Context, key, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts = append(f.puts, key)
	return "https://bucket.example.com/" + key + "?X-Amz-Signature=put", nil
}

func (f *fakeStorage) PresignGet(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	return "https://bucket.example.com/" + key + "?X-Amz-Signature=get", nil
}

func (f *fakeStorage) URLTTL() time.Duration { return f.ttl }

type fakeSender struct {
	mu     sync.Mutex
	events []workflow.Event
}

func (f *fakeSender) Send(_ context.Context, e workflow.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, e)
	return nil
}

type fakePayments struct {
	prices map[string]string
}

func (f *fakePayments) CreateCustomer(_ context.Context, email string) (string, error) {
	return "cus_" + strings.Split(email, "@")[0], nil
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, customerID, priceID string) (string, error) {
	return "https://checkout.stripe.com/pay/" + customerID + "/" + priceID, nil
}

func (f *fakePayments) SessionPriceID(_ context.Context, sessionID string) (string, error) {
	return f.prices[sessionID], nil
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	deps    *internal.Deps
	storage *fakeStorage
	sender  *fakeSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config.SetDefaults()
	viper.Set("jwt.secret", "test-secret")
	viper.Set("security.rate_limit", 1000)
	viper.Set("stripe.webhook_secret", webhookSecret)
	viper.Set("stripe.packs.small.price_id", "price_small")
	viper.Set("stripe.packs.medium.price_id", "price_medium")
	viper.Set("stripe.packs.large.price_id", "price_large")
	t.Cleanup(viper.Reset)

	database, err := db.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	urlCache := ttlcache.NewCache()
	urlCache.SkipTTLExtensionOnHit(true)
	t.Cleanup(func() { urlCache.Close() })

	s := &testServer{
		t:       t,
		storage: &fakeStorage{ttl: time.Hour},
		sender:  &fakeSender{},
	}

	s.deps = &internal.Deps{
		DB:       database,
		Argon:    &security.ArgonHash{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		Storage:  s.storage,
		Events:   s.sender,
		Payments: &fakePayments{prices: map[string]string{"cs_small": "price_small", "cs_other": "price_other"}},
		Mailer:   &service.Mailer{},
		URLCache: urlCache,
	}

	s.router = NewRouter(s.deps)
	return s
}

func (s *testServer) do(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		json.Unmarshal(w.Body.Bytes(), &out)
	}

	return w, out
}

// signup registers and logs in a user, returning its auth cookie
func (s *testServer) signup(email string) (string, *http.Cookie) {
	s.t.Helper()

	w, out := s.do(http.MethodPost, "/api/users", gin.H{"email": email, "password": "hunter22hunter"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	userID := out["userID"].(string)

	w, _ = s.do(http.MethodPost, "/api/users/login", gin.H{"email": email, "password": "hunter22hunter"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.AuthCookie {
			return userID, c
		}
	}

	s.t.Fatal("login didn't set the auth cookie")
	return "", nil
}

func (s *testServer) credits(userID string) int {
	s.t.Helper()

	var user model.User
	require.NoError(s.t, s.deps.DB.Where("id = ?", userID).First(&user).Error)
	return user.Credits
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	userID, cookie := s.signup("New.User@example.com")
	assert.Equal(t, 10, s.credits(userID))

	var user model.User
	require.NoError(t, s.deps.DB.Where("id = ?", userID).First(&user).Error)
	assert.Equal(t, "new.user@example.com", user.Email)
	require.NotNil(t, user.StripeCustomerID)
	assert.Equal(t, "cus_new.user", *user.StripeCustomerID)

	w, out := s.do(http.MethodPost, "/api/users", gin.H{"email": "new.user@example.com", "password": "hunter22hunter"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, out["success"])

	w, _ = s.do(http.MethodPost, "/api/users/login", gin.H{"email": "new.user@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, out = s.do(http.MethodGet, "/api/users", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 10, out["credits"])
	assert.Empty(t, out["files"])

	w, _ = s.do(http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	w, out := s.do(http.MethodPost, "/api/users", gin.H{"email": "nope", "password": "hunter22hunter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["requestID"])

	w, _ = s.do(http.MethodPost, "/api/users", gin.H{"email": "a@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadAndTrigger(t *testing.T) {
	s := newTestServer(t)
	userID, cookie := s.signup("uploader@example.com")

	w, _ := s.do(http.MethodPost, "/api/files/upload-url", gin.H{"filename": "episode.mov", "contentType": "video/quicktime"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out := s.do(http.MethodPost, "/api/files/upload-url", gin.H{"filename": "episode.mp4", "contentType": "video/mp4"}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	fileID := out["uploadedFileId"].(string)
	assert.Equal(t, fileID+"/original.mp4", out["key"])
	assert.Contains(t, out["signedUrl"], fileID+"/original.mp4")

	w, out = s.do(http.MethodGet, "/api/files", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, out["files"], "files show up once processing was triggered")

	w, out = s.do(http.MethodPost, "/api/files/"+fileID+"/process", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["queued"])

	w, out = s.do(http.MethodPost, "/api/files/"+fileID+"/process", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["queued"])

	require.Len(t, s.sender.events, 1)
	var data service.ProcessVideoData
	require.NoError(t, s.sender.events[0].Decode(&data))
	assert.Equal(t, service.ProcessVideoData{UploadedFileID: fileID, UserID: userID}, data)

	w, out = s.do(http.MethodGet, "/api/files", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["files"], 1)

	w, _ = s.do(http.MethodPost, "/api/files/missing/process", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClipURLs(t *testing.T) {
	s := newTestServer(t)
	userID, cookie := s.signup("viewer@example.com")
	_, otherCookie := s.signup("other@example.com")

	require.NoError(t, s.deps.DB.Create(&model.UploadedFile{ID: "f1", UserID: userID, S3Key: "f1/original.mp4", Uploaded: true}).Error)
	require.NoError(t, s.deps.DB.Create(&[]model.Clip{
		{ID: "c1", S3Key: "f1/clip_0.mp4", UserID: userID, UploadedFileID: "f1"},
		{ID: "c2", S3Key: "f1/clip_1.mp4", UserID: userID, UploadedFileID: "f1"},
	}).Error)

	w, out := s.do(http.MethodGet, "/api/clips?signed=1", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	clips := out["clips"].([]any)
	require.Len(t, clips, 2)
	for _, c := range clips {
		assert.Contains(t, c.(map[string]any)["url"], "X-Amz-Signature=get")
	}
	assert.Equal(t, 2, s.storage.gets)

	w, out = s.do(http.MethodGet, "/api/clips/c1/url", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, out["url"], "f1/clip_0.mp4")
	assert.Equal(t, 2, s.storage.gets, "signed URL served from cache")

	w, _ = s.do(http.MethodGet, "/api/clips/c1/url", nil, otherCookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, out = s.do(http.MethodGet, "/api/clips", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, out["clips"].([]any)[0].(map[string]any), "url")
}

func TestBilling(t *testing.T) {
	s := newTestServer(t)
	_, cookie := s.signup("buyer@example.com")

	w, out := s.do(http.MethodGet, "/api/billing/packs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, out["packs"], 3)

	w, _ = s.do(http.MethodPost, "/api/billing/checkout", gin.H{"pack": "huge"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, out = s.do(http.MethodPost, "/api/billing/checkout", gin.H{"pack": "small"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://checkout.stripe.com/pay/cus_buyer/price_small", out["url"])
}

func (s *testServer) webhook(payload string, secret string) *httptest.ResponseRecorder {
	s.t.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  secret,
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func checkoutPayload(eventID, sessionID, customerID string) string {
	return `{"id":"` + eventID + `","object":"event","type":"checkout.session.completed","data":{"object":{"id":"` +
		sessionID + `","object":"checkout.session","customer":"` + customerID + `"}}}`
}

func TestStripeWebhook(t *testing.T) {
	s := newTestServer(t)
	userID, _ := s.signup("payer@example.com")

	w := s.webhook(checkoutPayload("evt_1", "cs_small", "cus_payer"), "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10, s.credits(userID))

	w = s.webhook(checkoutPayload("evt_2", "cs_other", "cus_payer"), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, s.credits(userID), "unknown price adds nothing")

	w = s.webhook(checkoutPayload("evt_3", "cs_small", "cus_payer"), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60, s.credits(userID))

	w = s.webhook(checkoutPayload("evt_3", "cs_small", "cus_payer"), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 60, s.credits(userID), "redelivery adds nothing")

	w = s.webhook(checkoutPayload("evt_4", "cs_small", "cus_nobody"), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHeartbeat(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodHead, "/api/heartbeat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
