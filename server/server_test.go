package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metawave/cache"
	"metawave/config"
	"metawave/internal/testdb"
	"metawave/model"
	"metawave/storage"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	store  *storage.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test", JWTTTLHours: 1, MaxUploadMB: 5}
	store := storage.NewMemoryStore("http://localhost/static")
	h, err := NewAPIHandlerFromDB(testdb.New(t), store, cache.NewMemoryRevocationStore(), cfg)
	require.NoError(t, err)
	return &testServer{t: t, router: NewRouter(h), store: store}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signUp(handle string) (token, subject string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": handle + "@example.com", "password": "secret1", "name": "User " + handle, "handle": handle,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Token   string `json:"token"`
		Subject string `json:"subject"`
	}
	decode(s.t, rec, &out)
	return out.Token, out.Subject
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decode(t, rec, &body)
	msg, _ := body["error"].(string)
	return msg
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, subject := s.signUp("alice")

	rec := s.do(http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess struct {
		Subject string         `json:"subject"`
		Profile *model.Profile `json:"profile"`
	}
	decode(t, rec, &sess)
	assert.Equal(t, subject, sess.Subject)
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "alice", sess.Profile.Handle)

	rec = s.do(http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "alice@example.com", "password": "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, errorOf(t, rec))

	rec = s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "bad", "password": "secret1", "name": "Bob", "handle": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/tracks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/auth/oauth/github", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t)
	token, subject := s.signUp("alice")
	s.signUp("alina")

	rec := s.do(http.MethodPut, "/api/profiles/me", token, map[string]interface{}{"bio": "hello", "dob": "1990-02-03"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/profiles/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.Profile
	decode(t, rec, &me)
	require.NotNil(t, me.Bio)
	assert.Equal(t, "hello", *me.Bio)
	assert.Equal(t, "alice", me.Handle)

	rec = s.do(http.MethodPut, "/api/profiles/me", token, map[string]interface{}{"dob": "03/02/1990"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/profiles/search?q=ALI", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []model.ProfileSummary
	decode(t, rec, &results)
	assert.Len(t, results, 2)

	rec = s.do(http.MethodGet, "/api/profiles/"+subject, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "alice@example.com")

	rec = s.do(http.MethodGet, "/api/profiles/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackAndAlbumEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner, ownerID := s.signUp("alice")
	visitor, _ := s.signUp("bob")

	create := func(title string, public bool) model.Track {
		rec := s.do(http.MethodPost, "/api/tracks", owner, map[string]interface{}{
			"title": title, "file_url": "http://localhost/static/tracks/x.mp3", "is_public": public, "tags": []string{"live"},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var tr model.Track
		decode(t, rec, &tr)
		return tr
	}
	a := create("A", true)
	b := create("B", false)
	assert.Equal(t, ownerID, a.OwnerID)
	assert.Equal(t, model.StringList{"live"}, a.Tags)

	rec := s.do(http.MethodGet, "/api/tracks/"+b.ID, visitor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodGet, "/api/tracks/"+a.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, "/api/tracks/"+a.ID, visitor, map[string]interface{}{"title": "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodPut, "/api/tracks/"+a.ID, owner, map[string]interface{}{"artist": nil, "title": "A2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, "/api/tracks/"+a.ID, owner, map[string]interface{}{"title": "A3", "expected_version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/api/tracks/"+a.ID+"/tags", owner, map[string]interface{}{"tags": []string{"demo", "live"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tags":["demo","live"]}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/albums", owner, map[string]interface{}{"title": "Mix", "is_public": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	var album model.Album
	decode(t, rec, &album)

	rec = s.do(http.MethodPost, "/api/albums/"+album.ID+"/tracks", owner, map[string]interface{}{"track_ids": []string{a.ID, b.ID, "ghost"}})
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var batch struct {
		Failed []string `json:"failed"`
	}
	decode(t, rec, &batch)
	assert.Equal(t, []string{"ghost"}, batch.Failed)

	rec = s.do(http.MethodPut, "/api/albums/"+album.ID+"/order", owner, map[string]interface{}{"from": 1, "to": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/albums/"+album.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		IsOwner bool `json:"is_owner"`
		Tracks  []struct {
			Position int         `json:"position"`
			Track    model.Track `json:"track"`
		} `json:"tracks"`
	}
	decode(t, rec, &view)
	assert.True(t, view.IsOwner)
	require.Len(t, view.Tracks, 2)
	assert.Equal(t, b.ID, view.Tracks[0].Track.ID)
	assert.Equal(t, 1, view.Tracks[0].Position)

	rec = s.do(http.MethodGet, "/api/albums/"+album.ID, visitor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.False(t, view.IsOwner)
	require.Len(t, view.Tracks, 1)
	assert.Equal(t, a.ID, view.Tracks[0].Track.ID)
	assert.Equal(t, 0, view.Tracks[0].Position)

	rec = s.do(http.MethodPut, "/api/albums/"+album.ID+"/order", owner, map[string]interface{}{"track_ids": []string{a.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/insights", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "live"))

	rec = s.do(http.MethodDelete, "/api/tracks/"+b.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/tracks/"+b.ID, owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTagEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner, _ := s.signUp("alice")
	other, _ := s.signUp("bob")

	rec := s.do(http.MethodPost, "/api/tags", owner, map[string]interface{}{"name": "jazz"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tag model.Tag
	decode(t, rec, &tag)

	rec = s.do(http.MethodPost, "/api/tags", owner, map[string]interface{}{"name": "jazz"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/api/tags/"+tag.ID, other, map[string]interface{}{"name": "mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/tracks", owner, map[string]interface{}{"title": "T", "file_url": "x"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var tr model.Track
	decode(t, rec, &tr)

	rec = s.do(http.MethodPost, "/api/tracks/"+tr.ID+"/tags/"+tag.ID, owner, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/tracks/"+tr.ID+"/tags", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tags []model.Tag
	decode(t, rec, &tags)
	require.Len(t, tags, 1)
	assert.Equal(t, "jazz", tags[0].Name)

	rec = s.do(http.MethodDelete, "/api/tags/"+tag.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/tracks/"+tr.ID, owner, nil)
	decode(t, rec, &tr)
	assert.Empty(t, tr.Tags)
}

func TestUploadAndStatic(t *testing.T) {
	s := newTestServer(t)
	owner, ownerID := s.signUp("alice")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "First Take.mp3")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really audio"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("is_public", "true"))
	require.NoError(t, mw.WriteField("tags", "demo, live"))
	require.NoError(t, mw.WriteField("track_date", "2024-05-01"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tr model.Track
	decode(t, rec, &tr)
	assert.Equal(t, "First Take", tr.Title)
	assert.True(t, tr.IsPublic)
	assert.Equal(t, model.StringList{"demo", "live"}, tr.Tags)
	require.NotNil(t, tr.TrackDate)
	assert.Equal(t, 2024, tr.TrackDate.Year())
	assert.True(t, strings.HasPrefix(tr.FileURL, "http://localhost/static/tracks/"+ownerID+"/"))

	rec = s.do(http.MethodGet, strings.TrimPrefix(tr.FileURL, "http://localhost"), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not really audio", rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))

	rec = s.do(http.MethodGet, "/static/tracks/missing.mp3", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/static/secrets/x", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/tracks/export", owner, map[string]interface{}{"track_ids": []string{tr.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tracks.zip")
	assert.Empty(t, rec.Result().Trailer.Get("X-Export-Failed"))

	rec = s.do(http.MethodPost, "/api/tracks/export", owner, map[string]interface{}{"track_ids": []string{tr.ID, "missing-id"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Result().Trailer.Get("X-Export-Failed"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodOptions, "/api/tracks", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
