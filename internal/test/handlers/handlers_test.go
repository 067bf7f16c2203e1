package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagechat-backend/internal/credits"
	"imagechat-backend/internal/handlers"
	"imagechat-backend/internal/middleware"
	"imagechat-backend/internal/models"
	"imagechat-backend/internal/supabase"
	"imagechat-backend/internal/tasks"
)

// authAs injects an authenticated user the way AuthMiddleware would.
func authAs(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID.String())
		c.Next()
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", handlers.Health)

	w := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

// --- Generation endpoint ---

type memTaskStore struct {
	tasks map[uuid.UUID]*models.ImageTask
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*models.ImageTask)}
}

func (m *memTaskStore) CreateImageTask(task *models.ImageTask) (*models.ImageTask, error) {
	created := *task
	created.ID = uuid.New()
	created.Status = models.TaskStatusProcessing
	m.tasks[created.ID] = &created
	return &created, nil
}

func (m *memTaskStore) GetImageTask(taskID, userID uuid.UUID) (*models.ImageTask, error) {
	task, ok := m.tasks[taskID]
	if !ok || task.UserID != userID {
		return nil, errors.New("task not found")
	}
	return task, nil
}

func (m *memTaskStore) CompleteImageTask(taskID uuid.UUID, processedImageURL, predictionID string) error {
	task := m.tasks[taskID]
	task.Status = models.TaskStatusCompleted
	task.ProcessedImageURL.String = processedImageURL
	task.ProcessedImageURL.Valid = true
	task.PredictionID.String = predictionID
	task.PredictionID.Valid = true
	return nil
}

func (m *memTaskStore) FailImageTask(taskID uuid.UUID, errorMsg, predictionID string) error {
	task := m.tasks[taskID]
	task.Status = models.TaskStatusFailed
	task.ErrorMessage.String = errorMsg
	task.ErrorMessage.Valid = true
	return nil
}

type stubGate struct {
	balance int
}

func (s *stubGate) Check(userID uuid.UUID) (int, error) {
	if s.balance < 1 {
		return s.balance, credits.ErrInsufficientCredits
	}
	return s.balance, nil
}

func (s *stubGate) Debit(userID uuid.UUID, referenceID string) (*models.UserCredit, error) {
	s.balance--
	return &models.UserCredit{UserID: userID, CurrentBalance: s.balance}, nil
}

type stubProvider struct {
	outputURL string
	err       error
}

func (s *stubProvider) Generate(ctx context.Context, prompt, sourceImageURL string) (string, string, error) {
	if s.err != nil {
		return "", "pred-1", s.err
	}
	return s.outputURL, "pred-1", nil
}

var generateAllowedDomains = []string{"supabase.co", "replicate.delivery"}

func generateRouter(userID uuid.UUID, gate tasks.Gate, provider tasks.Provider) (*gin.Engine, *memTaskStore) {
	gin.SetMode(gin.TestMode)
	store := newMemTaskStore()
	orchestrator := tasks.NewOrchestrator(store, gate, provider, nil, generateAllowedDomains)
	handler := handlers.NewTaskHandler(orchestrator)

	router := gin.New()
	api := router.Group("/api/v1", authAs(userID))
	api.POST("/generate", handler.Generate)
	api.GET("/tasks/:task_id", handler.GetTask)
	return router, store
}

func TestGenerateEndpointSuccess(t *testing.T) {
	userID := uuid.New()
	router, _ := generateRouter(userID, &stubGate{balance: 3}, &stubProvider{outputURL: "https://replicate.delivery/out.jpg"})

	w := doJSON(t, router, http.MethodPost, "/api/v1/generate", models.GenerateRequest{
		Prompt: "a calm lake at dawn",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.TaskStatusCompleted, resp.Status)
	assert.Equal(t, "https://replicate.delivery/out.jpg", resp.ProcessedImageURL)
	assert.Equal(t, "pred-1", resp.PredictionID)
}

func TestGenerateEndpointRejectsEmptyPrompt(t *testing.T) {
	router, _ := generateRouter(uuid.New(), &stubGate{balance: 3}, &stubProvider{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/generate", models.GenerateRequest{Prompt: ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateEndpointRejectsUntrustedHost(t *testing.T) {
	router, _ := generateRouter(uuid.New(), &stubGate{balance: 3}, &stubProvider{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/generate", models.GenerateRequest{
		Prompt:           "edit this",
		OriginalImageURL: "https://evil.example.com/a.jpg",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "evil.example.com")
}

func TestGenerateEndpointPaymentRequired(t *testing.T) {
	router, _ := generateRouter(uuid.New(), &stubGate{balance: 0}, &stubProvider{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/generate", models.GenerateRequest{Prompt: "anything"})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Balance)
	assert.Equal(t, 0, *resp.Balance)
}

func TestGenerateEndpointProviderFailure(t *testing.T) {
	router, store := generateRouter(uuid.New(), &stubGate{balance: 3}, &stubProvider{err: errors.New("model offline")})

	w := doJSON(t, router, http.MethodPost, "/api/v1/generate", models.GenerateRequest{Prompt: "edit"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, store.tasks, 1)
	for _, task := range store.tasks {
		assert.Equal(t, models.TaskStatusFailed, task.Status)
	}
}

func TestGetTaskEndpointNotFoundForOtherUser(t *testing.T) {
	owner := uuid.New()
	router, store := generateRouter(owner, &stubGate{balance: 3}, &stubProvider{outputURL: "https://replicate.delivery/o.jpg"})

	w := doJSON(t, router, http.MethodPost, "/api/v1/generate", models.GenerateRequest{Prompt: "x"})
	require.Equal(t, http.StatusOK, w.Code)

	var taskID string
	for id := range store.tasks {
		taskID = id.String()
	}

	otherRouter, _ := generateRouter(uuid.New(), &stubGate{balance: 3}, &stubProvider{})
	w = doJSON(t, otherRouter, http.MethodGet, "/api/v1/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Credits endpoints ---

type memLedger struct {
	balances map[uuid.UUID]*models.UserCredit
	history  []models.CreditTransaction
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[uuid.UUID]*models.UserCredit)}
}

func (m *memLedger) EnsureCreditAccount(userID uuid.UUID, signupGrant int) error {
	if _, ok := m.balances[userID]; ok {
		return nil
	}
	m.balances[userID] = &models.UserCredit{
		ID: uuid.New(), UserID: userID,
		CurrentBalance: signupGrant, TotalEarned: signupGrant,
	}
	m.history = append(m.history, models.CreditTransaction{
		ID: uuid.New(), UserID: userID, Amount: signupGrant,
		TransactionType: models.TransactionSignupGrant,
	})
	return nil
}

func (m *memLedger) GetCreditBalance(userID uuid.UUID) (*models.UserCredit, error) {
	return m.balances[userID], nil
}

func (m *memLedger) AdjustCreditBalance(userID uuid.UUID, amount int, txType, description, referenceID string) (*models.UserCredit, error) {
	credit := m.balances[userID]
	if credit.CurrentBalance+amount < 0 {
		return nil, supabase.ErrInsufficientBalance
	}
	credit.CurrentBalance += amount
	m.history = append(m.history, models.CreditTransaction{
		ID: uuid.New(), UserID: userID, Amount: amount, TransactionType: txType,
	})
	return credit, nil
}

func (m *memLedger) ListCreditTransactions(userID uuid.UUID) ([]models.CreditTransaction, error) {
	var out []models.CreditTransaction
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].UserID == userID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

const testAdminToken = "admin-secret"

func creditRouter(userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewCreditHandler(credits.NewGate(newMemLedger()), testAdminToken)

	router := gin.New()
	api := router.Group("/api/v1", authAs(userID))
	api.GET("/credits/balance", handler.GetBalance)
	api.GET("/credits/transactions", handler.ListTransactions)
	api.POST("/credits/topup", handler.TopUp)
	return router
}

func TestBalanceEndpointGrantsWelcomeCredits(t *testing.T) {
	userID := uuid.New()
	router := creditRouter(userID)

	w := doJSON(t, router, http.MethodGet, "/api/v1/credits/balance", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, credits.SignupGrant, resp.CurrentBalance)
	assert.Equal(t, userID.String(), resp.UserID)
}

func TestTransactionsEndpointShowsGrant(t *testing.T) {
	router := creditRouter(uuid.New())

	w := doJSON(t, router, http.MethodGet, "/api/v1/credits/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/credits/transactions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.TransactionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, models.TransactionSignupGrant, resp.Transactions[0].TransactionType)
}

func TestTopUpEndpointRequiresAdminToken(t *testing.T) {
	router := creditRouter(uuid.New())

	w := doJSON(t, router, http.MethodPost, "/api/v1/credits/topup", models.TopUpRequest{
		UserID: uuid.NewString(), Amount: 10,
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTopUpEndpointWithAdminToken(t *testing.T) {
	router := creditRouter(uuid.New())
	target := uuid.NewString()

	body, err := json.Marshal(models.TopUpRequest{UserID: target, Amount: 10})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/credits/topup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", testAdminToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, credits.SignupGrant+10, resp.CurrentBalance)
}
