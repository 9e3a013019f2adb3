package signups_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/middleware"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/internal/signups"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f *fixture) router(as signups.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := signups.NewHandler(f.svc, events.NewService(f.store, f.store, nil, nil))
	r := gin.New()
	r.Use(func(c *gin.Context) { middleware.SetCaller(c, as.ID, as.Role) })
	r.POST("/events/:id/signups", h.Reserve)
	r.POST("/events/:id/signups/group", h.ReserveGroup)
	r.DELETE("/events/:id/signups/:userId", h.Cancel)
	r.GET("/events/:id/signups", h.ListByEvent)
	r.GET("/events/:id/availability", h.Availability)
	r.GET("/me/signups", h.ListMine)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (int, envelope) {
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

func TestHandlerReserveSelf(t *testing.T) {
	f := newFixture(t)
	e := f.event(1)
	user := f.participant()
	r := f.router(user)

	code, env := do(t, r, http.MethodPost, "/events/"+e.ID.String()+"/signups", nil)
	require.Equal(t, http.StatusCreated, code)
	var res signups.ReservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEqual(t, uuid.Nil, res.ReservationID)
	assert.Equal(t, user.ID, res.UserID)

	code, env = do(t, r, http.MethodPost, "/events/"+e.ID.String()+"/signups", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, signups.ErrAlreadyReserved.Error(), env.Error)

	code, env = do(t, f.router(f.participant()), http.MethodPost, "/events/"+e.ID.String()+"/signups", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, signups.ErrEventFull.Error(), env.Error)
}

func TestHandlerReserveErrors(t *testing.T) {
	f := newFixture(t)
	e := f.event(0)
	user := f.participant()
	other := f.participant()
	r := f.router(user)

	code, _ := do(t, r, http.MethodPost, "/events/nope/signups", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/events/"+uuid.NewString()+"/signups", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, r, http.MethodPost, "/events/"+e.ID.String()+"/signups", gin.H{"user_id": other.ID.String()})
	assert.Equal(t, http.StatusForbidden, code)

	code, env := do(t, f.router(f.leader), http.MethodPost, "/events/"+e.ID.String()+"/signups", gin.H{"user_id": uuid.NewString()})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(env.Data), "missing")
}

func TestHandlerGroup(t *testing.T) {
	f := newFixture(t)
	e := f.event(3)
	a, b, c, d := f.participant(), f.participant(), f.participant(), f.participant()
	r := f.router(f.leader)
	path := "/events/" + e.ID.String() + "/signups/group"

	code, env := do(t, r, http.MethodPost, path, gin.H{"user_ids": []string{a.ID.String(), b.ID.String()}})
	require.Equal(t, http.StatusCreated, code)
	var result signups.GroupResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.CreatedCount)

	code, env = do(t, r, http.MethodPost, path, gin.H{"user_ids": []string{c.ID.String(), d.ID.String()}})
	assert.Equal(t, http.StatusConflict, code)
	assert.JSONEq(t, `{"requested":2,"remaining":1}`, string(env.Data))

	code, _ = do(t, r, http.MethodPost, path, gin.H{"user_ids": []string{a.ID.String()}})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodPost, path, gin.H{"user_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, f.router(a), http.MethodPost, path, gin.H{"user_ids": []string{d.ID.String()}})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHandlerCancelAndLists(t *testing.T) {
	f := newFixture(t)
	e := f.event(0)
	user := f.participant()
	stranger := f.participant()
	r := f.router(user)
	base := "/events/" + e.ID.String()

	code, _ := do(t, r, http.MethodPost, base+"/signups", nil)
	require.Equal(t, http.StatusCreated, code)

	code, env := do(t, r, http.MethodGet, "/me/signups", nil)
	require.Equal(t, http.StatusOK, code)
	var mine []models.Reservation
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	code, _ = do(t, f.router(stranger), http.MethodGet, base+"/signups", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, env = do(t, f.router(f.leader), http.MethodGet, base+"/signups", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), user.ID.String())

	code, _ = do(t, f.router(stranger), http.MethodDelete, base+"/signups/"+user.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = do(t, r, http.MethodDelete, base+"/signups/"+user.ID.String(), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ok":true}`, string(env.Data))

	code, _ = do(t, r, http.MethodDelete, base+"/signups/"+user.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = do(t, r, http.MethodGet, base+"/availability", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"unbounded":true`)
}

func TestHandlerOrganizationManagerListsSignups(t *testing.T) {
	f := newFixture(t)
	org := f.store.AddOrganization(models.Organization{Name: "Food bank"})
	manager := f.participant()
	f.store.AddMember(org.ID, manager.ID, models.OrgRoleEventManager)
	e := f.store.PutEvent(models.Event{Title: "Sorting", OrganizationID: &org.ID})

	code, _ := do(t, f.router(manager), http.MethodGet, "/events/"+e.ID.String()+"/signups", nil)
	assert.Equal(t, http.StatusOK, code)
}
