package events_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/middleware"
	"github.com/connect-hub/backend/internal/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f *fixture) router(as models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := events.NewHandler(f.svc)
	r := gin.New()
	r.Use(func(c *gin.Context) { middleware.SetCaller(c, as.ID, as.Role) })
	r.GET("/events", h.List)
	r.GET("/events/:id", h.GetByID)
	r.POST("/events", h.Create)
	r.DELETE("/events/:id", h.Delete)
	r.POST("/series", h.CreateSeries)
	return r
}

func call(t *testing.T, r http.Handler, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestHandlerCreateAndGet(t *testing.T) {
	f := newFixture(t)
	r := f.router(f.manager)

	code, env := call(t, r, http.MethodPost, "/events", gin.H{
		"title":              "Trail repair",
		"date":               now.Add(24 * time.Hour).Format(time.RFC3339),
		"estimated_end_time": now.Add(27 * time.Hour).Format(time.RFC3339),
		"max_participants":   8,
		"organization_id":    f.org.ID.String(),
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var e models.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.Equal(t, "Trail repair", e.Title)

	code, env = call(t, r, http.MethodGet, "/events/"+e.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var item struct {
		ID           string `json:"id"`
		Availability struct {
			Available int `json:"available"`
		} `json:"availability"`
		EndsAt time.Time `json:"ends_at"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, e.ID.String(), item.ID)
	assert.Equal(t, 8, item.Availability.Available)
	assert.True(t, now.Add(27*time.Hour).Equal(item.EndsAt))

	code, env = call(t, r, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), e.ID.String())
}

func TestHandlerCreateRejects(t *testing.T) {
	f := newFixture(t)
	date := now.Add(time.Hour).Format(time.RFC3339)

	code, _ := call(t, f.router(f.manager), http.MethodPost, "/events", gin.H{"title": "x", "date": "next tuesday"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := call(t, f.router(f.admin), http.MethodPost, "/events", gin.H{"title": "x", "date": date, "max_participants": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"field":"max_participants"}`, string(env.Data))

	code, _ = call(t, f.router(f.member), http.MethodPost, "/events", gin.H{"title": "x", "date": date, "organization_id": f.org.ID.String()})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHandlerSeriesAndDelete(t *testing.T) {
	f := newFixture(t)
	r := f.router(f.manager)

	code, _ := call(t, r, http.MethodPost, "/series", gin.H{"title": "Tutoring", "organization_id": f.org.ID.String(), "end_time": "7pm"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := call(t, r, http.MethodPost, "/series", gin.H{"title": "Tutoring", "organization_id": f.org.ID.String(), "end_time": "19:00"})
	require.Equal(t, http.StatusCreated, code)
	var series models.EventSeries
	require.NoError(t, json.Unmarshal(env.Data, &series))
	require.NotNil(t, series.EndTime)
	assert.Equal(t, 19, series.EndTime.Hour)

	code, env = call(t, r, http.MethodPost, "/events", gin.H{
		"title": "Tutoring", "date": now.Add(2 * time.Hour).Format(time.RFC3339), "series_id": series.ID.String(),
	})
	require.Equal(t, http.StatusCreated, code)
	var e models.Event
	require.NoError(t, json.Unmarshal(env.Data, &e))

	code, _ = call(t, f.router(f.member), http.MethodDelete, "/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = call(t, r, http.MethodDelete, "/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, r, http.MethodGet, "/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}
