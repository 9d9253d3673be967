package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/GwennLsk/BackCantineAston/internal/user"
)

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (f *fixture) login(t *testing.T, email, password string) user.LoginResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp user.LoginResponse
	decodeInto(t, w, &resp)
	return resp
}

func TestUsers_Integration(t *testing.T) {
	for name, open := range stores() {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Run("POST /users creates a user", func(t *testing.T) {
				f := setup(t, open)
				w := f.do(t, http.MethodPost, "/users",
					`{"name":"AFFAME","firstname":"Jean-Michel","email":"jm.affame@email.com","password":"chihuahua","admin":false}`, "")

				require.Equal(t, http.StatusOK, w.Code, w.Body.String())
				var created user.User
				decodeInto(t, w, &created)
				assert.Equal(t, "AFFAME", created.Name)
				assert.Equal(t, "Jean-Michel", created.Firstname)
				assert.Equal(t, "jm.affame@email.com", created.Email)
				assert.False(t, created.Admin)
				assert.Empty(t, created.OrderKeys)
				assert.Equal(t, int64(0), created.Solde)
				assert.NotContains(t, w.Body.String(), "chihuahua")

				f.login(t, "jm.affame@email.com", "chihuahua")
			})

			t.Run("POST /users without optional fields", func(t *testing.T) {
				f := setup(t, open)
				w := f.do(t, http.MethodPost, "/users",
					`{"name":"AFFAME","firstname":"Jean-Michel","email":"jm.affame@email.com","password":"chihuahua"}`, "")

				require.Equal(t, http.StatusOK, w.Code, w.Body.String())
				assert.Contains(t, w.Body.String(), `"orderKeys":[]`)
			})

			t.Run("POST /users rejects an invalid body", func(t *testing.T) {
				f := setup(t, open)
				w := f.do(t, http.MethodPost, "/users",
					`{"name":"AFFAME","firstname":"Jean-Michel","email":"jm.affame@email.com"}`, "")

				assert.Equal(t, http.StatusBadRequest, w.Code)

				var list user.UsersEnvelope
				decodeInto(t, f.do(t, http.MethodGet, "/users", "", ""), &list)
				assert.Len(t, list.Users, 3)
			})

			t.Run("POST /users rejects a taken email", func(t *testing.T) {
				f := setup(t, open)
				w := f.do(t, http.MethodPost, "/users",
					`{"name":"LINSKI","firstname":"Gwenn","email":"Gwenn.Linski@gmail.com","password":"12345678"}`, "")

				assert.Equal(t, http.StatusConflict, w.Code)
			})

			t.Run("GET /users lists every user", func(t *testing.T) {
				f := setup(t, open)
				w := f.do(t, http.MethodGet, "/users", "", "")

				require.Equal(t, http.StatusOK, w.Code)
				var list user.UsersEnvelope
				decodeInto(t, w, &list)
				assert.Len(t, list.Users, 3)
			})

			t.Run("GET /users/:id", func(t *testing.T) {
				f := setup(t, open)
				w := f.do(t, http.MethodGet, "/users/"+f.users[0].ID.Hex(), "", "")

				require.Equal(t, http.StatusOK, w.Code)
				var env user.UserEnvelope
				decodeInto(t, w, &env)
				assert.Equal(t, "LINSKI", env.User.Name)
				assert.Equal(t, "Gwenn", env.User.Firstname)
				assert.Equal(t, "gwenn.linski@gmail.com", env.User.Email)

				assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/users/"+primitive.NewObjectID().Hex(), "", "").Code)
				assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/users/123", "", "").Code)
			})

			t.Run("PATCH /users/:id", func(t *testing.T) {
				f := setup(t, open)
				id := f.users[0].ID.Hex()
				w := f.do(t, http.MethodPatch, "/users/"+id, `{"firstname":"Agathe","password":"topsecret"}`, "")

				require.Equal(t, http.StatusOK, w.Code, w.Body.String())
				var env user.UserEnvelope
				decodeInto(t, w, &env)
				assert.Equal(t, "Agathe", env.User.Firstname)
				assert.Equal(t, "LINSKI", env.User.Name)

				f.login(t, "gwenn.linski@gmail.com", "topsecret")

				assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/users/"+primitive.NewObjectID().Hex(), "", "").Code)
				assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/users/123", "", "").Code)
			})

			t.Run("PATCH /users/:id replaces order keys", func(t *testing.T) {
				f := setup(t, open)
				key := "5c52da3eb30043699194df38"
				w := f.do(t, http.MethodPatch, "/users/"+f.users[1].ID.Hex(), `{"orderKeys":["`+key+`"]}`, "")

				require.Equal(t, http.StatusOK, w.Code, w.Body.String())
				var env user.UserEnvelope
				decodeInto(t, w, &env)
				require.Len(t, env.User.OrderKeys, 1)
				assert.Equal(t, key, env.User.OrderKeys[0].Hex())
			})

			t.Run("POST /users/:id/orders adds an order once", func(t *testing.T) {
				f := setup(t, open)
				path := "/users/" + f.users[1].ID.Hex() + "/orders"
				body := `{"orderKey":"5c52da3eb30043699194df38"}`

				require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, path, body, "").Code)
				w := f.do(t, http.MethodPost, path, body, "")

				require.Equal(t, http.StatusOK, w.Code)
				var env user.UserEnvelope
				decodeInto(t, w, &env)
				assert.Len(t, env.User.OrderKeys, 3)
			})

			t.Run("DELETE /users/:id", func(t *testing.T) {
				f := setup(t, open)
				id := f.users[1].ID.Hex()
				w := f.do(t, http.MethodDelete, "/users/"+id, "", "")

				require.Equal(t, http.StatusOK, w.Code)
				var env user.UserEnvelope
				decodeInto(t, w, &env)
				assert.Equal(t, id, env.User.ID.Hex())

				_, err := f.repo.FindByID(context.Background(), f.users[1].ID)
				assert.ErrorIs(t, err, user.ErrUserNotFound)

				assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/users/"+primitive.NewObjectID().Hex(), "", "").Code)
				assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/users/123", "", "").Code)
			})

			t.Run("admin credit and debit", func(t *testing.T) {
				f := setup(t, open)
				admin := f.login(t, "jm.cantinier@gmail.com", "87654321")
				member := f.login(t, "gwenn.linski@gmail.com", "12345678")
				path := "/admin/users/" + f.users[0].ID.Hex() + "/credit"

				assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, path, `{"amount":500}`, member.AccessToken).Code)

				w := f.do(t, http.MethodPost, path, `{"amount":500}`, admin.AccessToken)
				require.Equal(t, http.StatusOK, w.Code, w.Body.String())
				var env user.UserEnvelope
				decodeInto(t, w, &env)
				assert.Equal(t, int64(500), env.User.Solde)

				assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, path, `{"amount":-800}`, admin.AccessToken).Code)

				w = f.do(t, http.MethodPost, path, `{"amount":-200}`, admin.AccessToken)
				require.Equal(t, http.StatusOK, w.Code)
				decodeInto(t, w, &env)
				assert.Equal(t, int64(300), env.User.Solde)
			})

			t.Run("login, refresh and me", func(t *testing.T) {
				f := setup(t, open)
				tokens := f.login(t, "gwenn.linski@gmail.com", "12345678")

				w := f.do(t, http.MethodGet, "/me", "", tokens.AccessToken)
				require.Equal(t, http.StatusOK, w.Code)
				assert.Contains(t, w.Body.String(), f.users[0].ID.Hex())

				w = f.do(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+tokens.RefreshToken+`"}`, "")
				require.Equal(t, http.StatusOK, w.Code)

				wrong := f.do(t, http.MethodPost, "/auth/login", `{"email":"gwenn.linski@gmail.com","password":"nope"}`, "")
				assert.Equal(t, http.StatusUnauthorized, wrong.Code)
			})

			t.Run("ready", func(t *testing.T) {
				f := setup(t, open)
				assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", "", "").Code)
			})
		})
	}
}
