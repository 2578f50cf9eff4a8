package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/J12003LPZ/Chatbot/internal/profile"
	"github.com/J12003LPZ/Chatbot/plugin/fileparse"
	"github.com/J12003LPZ/Chatbot/plugin/llm"
	"github.com/J12003LPZ/Chatbot/store"
	"github.com/J12003LPZ/Chatbot/store/db/memory"
)

func newTestingService(t *testing.T) (*APIV1Service, *echo.Echo) {
	t.Helper()
	p := &profile.Profile{
		Mode:           "demo",
		Driver:         "memory",
		HistoryWindow:  10,
		MaxUploadBytes: 1024 * 1024,
	}
	driver, err := memory.NewDB(p)
	require.NoError(t, err)
	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })

	// No API key: inference paths report unavailable without a network call.
	provider, err := llm.NewProvider(llm.ConfigFromProfile(p))
	require.NoError(t, err)

	svc := NewAPIV1Service(p, s, provider, fileparse.NewParser(p))
	e := echo.New()
	svc.RegisterRoutes(e)
	return svc, e
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestChatValidation(t *testing.T) {
	svc, e := newTestingService(t)

	t.Run("EmptyBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		require.NoError(t, svc.Chat(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		require.NoError(t, svc.Chat(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChatWithoutProviderKeepsUserMessage(t *testing.T) {
	svc, e := newTestingService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hello","session_id":"s1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, svc.Chat(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body errorResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, errKindGeneration, body.Kind)

	// A failed generation never loses the user's turn.
	history, err := svc.Store.GetHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.MessageRoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
}

func TestChatStoresImageMarker(t *testing.T) {
	svc, e := newTestingService(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"what is this","session_id":"s1","image_data":"aGVsbG8="}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, svc.Chat(e.NewContext(req, rec)))

	history, err := svc.Store.GetHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "[IMAGE ATTACHED] what is this", history[0].Content)
}

func TestGetHistory(t *testing.T) {
	svc, e := newTestingService(t)
	ctx := context.Background()

	_, err := svc.Store.AppendMessage(ctx, "s1", store.MessageRoleUser, "question", "")
	require.NoError(t, err)
	_, err = svc.Store.AppendMessage(ctx, "s1", store.MessageRoleAssistant, "answer", "")
	require.NoError(t, err)

	t.Run("ReturnsMessages", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("session_id")
		c.SetParamValues("s1")
		require.NoError(t, svc.GetHistory(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body historyResponse
		decodeJSON(t, rec, &body)
		assert.Equal(t, "s1", body.SessionID)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "question", body.Messages[0].Content)
		assert.NotEmpty(t, body.Messages[0].Timestamp)
		assert.NotEmpty(t, body.CreatedAt)
	})

	t.Run("UnknownSessionIsEmpty", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("session_id")
		c.SetParamValues("never-created")
		require.NoError(t, svc.GetHistory(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body historyResponse
		decodeJSON(t, rec, &body)
		assert.Empty(t, body.Messages)
	})

	t.Run("UndefinedSessionID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("session_id")
		c.SetParamValues("undefined")
		require.NoError(t, svc.GetHistory(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListSessions(t *testing.T) {
	svc, e := newTestingService(t)
	ctx := context.Background()

	_, err := svc.Store.AppendMessage(ctx, "s1", store.MessageRoleUser, "first question here", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, svc.ListSessions(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body listSessionsResponse
	decodeJSON(t, rec, &body)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "s1", body.Sessions[0].SessionID)
	assert.Equal(t, "first question here", body.Sessions[0].Preview)
	assert.Equal(t, 1, body.Sessions[0].MessageCount)
}

func TestDeleteSession(t *testing.T) {
	svc, e := newTestingService(t)
	ctx := context.Background()

	_, err := svc.Store.AppendMessage(ctx, "s1", store.MessageRoleUser, "bye", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("s1")
	require.NoError(t, svc.DeleteSession(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	history, err := svc.Store.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func multipartUpload(t *testing.T, filename, sessionID string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("session_id", sessionID))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpload(t *testing.T) {
	svc, e := newTestingService(t)

	t.Run("TextFile", func(t *testing.T) {
		body, contentType := multipartUpload(t, "notes.txt", "s1", []byte("important notes"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		require.NoError(t, svc.Upload(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp uploadResponse
		decodeJSON(t, rec, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "s1", resp.SessionID)

		history, err := svc.Store.GetHistory(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, store.MessageRoleSystem, history[0].Role)
		assert.Empty(t, history[0].Content)
		assert.Contains(t, history[0].AttachmentExcerpt, "important notes")

		// The excerpt still shows up as the system row's content in the
		// history view.
		hreq := httptest.NewRequest(http.MethodGet, "/", nil)
		hrec := httptest.NewRecorder()
		hc := e.NewContext(hreq, hrec)
		hc.SetParamNames("session_id")
		hc.SetParamValues("s1")
		require.NoError(t, svc.GetHistory(hc))
		var hbody historyResponse
		decodeJSON(t, hrec, &hbody)
		require.Len(t, hbody.Messages, 1)
		assert.Contains(t, hbody.Messages[0].Content, "important notes")
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		body, contentType := multipartUpload(t, "malware.exe", "s1", []byte("nope"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		require.NoError(t, svc.Upload(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingFile", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		rec := httptest.NewRecorder()
		require.NoError(t, svc.Upload(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	svc, e := newTestingService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, svc.Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "memory", body.Backend)
	assert.Equal(t, "not configured", body.LLM)
	assert.Zero(t, body.SessionCount)

	// The count tracks sessions held by the active backend.
	_, err := svc.Store.CreateOrGetSession(context.Background(), "s1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	require.NoError(t, svc.Health(e.NewContext(req, rec)))
	decodeJSON(t, rec, &body)
	assert.Equal(t, 1, body.SessionCount)
}
