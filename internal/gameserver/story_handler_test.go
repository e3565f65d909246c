package gameserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storyloom/backend/internal/game/story"
)

// cannedNarrator satisfies story.Narrator with fixed text.
type cannedNarrator struct{}

func (cannedNarrator) SoloSeed(_ context.Context, genre, _ string) string {
	return "A " + genre + " story opens."
}

func (cannedNarrator) SoloContinue(context.Context, string, string, string, string) string {
	return "The next chapter."
}

func (cannedNarrator) SoloSeedStream(ctx context.Context, genre, model string, emit func(string)) (string, error) {
	text := cannedNarrator{}.SoloSeed(ctx, genre, model)
	emit(text)
	return text, nil
}

func (cannedNarrator) SoloContinueStream(ctx context.Context, story, action, genre, model string, emit func(string)) (string, error) {
	text := cannedNarrator{}.SoloContinue(ctx, story, action, genre, model)
	emit(text)
	return text, nil
}

func newStoryHandler(t *testing.T) (*StoryHandler, *story.Service) {
	svc := story.NewService(cannedNarrator{}, zaptest.NewLogger(t))
	return NewStoryHandler(svc, zaptest.NewLogger(t)), svc
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestStoryStart(t *testing.T) {
	h, svc := newStoryHandler(t)
	e := echo.New()

	c, rec := postJSON(e, "/api/games/story/start", `{"genre":"horror"}`)
	require.NoError(t, h.Start(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res story.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "A horror story opens.", res.Story)
	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, 1, svc.Count())
}

func TestStoryStartDefaultsGenre(t *testing.T) {
	h, _ := newStoryHandler(t)
	e := echo.New()

	c, rec := postJSON(e, "/api/games/story/start", `{}`)
	require.NoError(t, h.Start(c))

	var res story.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "fantasy", res.Genre)
}

func TestStoryContinue(t *testing.T) {
	h, svc := newStoryHandler(t)
	e := echo.New()

	started := svc.Start(context.Background(), "fantasy", "")

	c, rec := postJSON(e, "/api/games/story/continue",
		`{"session_id":"`+started.SessionID+`","choice":1}`)
	require.NoError(t, h.Continue(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res story.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Turn)
	assert.Equal(t, "The next chapter.", res.Story)
}

func TestStoryContinueUnknownSession(t *testing.T) {
	h, _ := newStoryHandler(t)
	e := echo.New()

	c, _ := postJSON(e, "/api/games/story/continue", `{"session_id":"missing","choice":1}`)
	err := h.Continue(c)
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestStoryStartStreamEmitsChunksAndDone(t *testing.T) {
	h, _ := newStoryHandler(t)
	e := echo.New()

	c, rec := postJSON(e, "/api/games/story/start/stream", `{"genre":"sci-fi"}`)
	require.NoError(t, h.StartStream(c))

	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, `data: {"chunk":"A sci-fi story opens."}`)
	assert.Contains(t, body, `"done":true`)
}

func TestStorySummary(t *testing.T) {
	h, svc := newStoryHandler(t)
	e := echo.New()

	started := svc.Start(context.Background(), "mystery", "")

	req := httptest.NewRequest(http.MethodGet, "/api/games/story/"+started.SessionID+"/summary", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(started.SessionID)

	require.NoError(t, h.Summary(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var sum story.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "mystery", sum.Genre)
	require.Len(t, sum.History, 1)
}

func TestStorySummaryUnknownSession(t *testing.T) {
	h, _ := newStoryHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/games/story/missing/summary", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("missing")

	err := h.Summary(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}
