package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/cache"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/realtime"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/repo/inmemory"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/stats"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	engine    *gee.Engine
	hub       *realtime.Hub
	users     *inmemory.UsersRepo
	rows      *inmemory.UrlsRepo
	clicks    *stats.ChannelCollector
	aboutPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := inmemory.New()
	s := &testServer{
		hub:       realtime.NewHub(16),
		users:     inmemory.NewUsersRepo(db, 4),
		rows:      inmemory.NewUrlsRepo(db),
		clicks:    stats.NewChannelCollector(16),
		aboutPath: filepath.Join(t.TempDir(), "about.txt"),
	}
	t.Cleanup(s.hub.Close)
	require.NoError(t, os.WriteFile(s.aboutPath, []byte("base62 codes"), 0o644))

	ts, err := auth.NewHS256Service(testSecret, "issuer", "audience", 15*time.Minute)
	require.NoError(t, err)

	ledger := inmemory.NewRefreshTokenLedger(db, time.Hour)
	identity := urlshortener.NewIdentityService(s.users, ledger, urlshortener.NewJWTIssuer(ts), inmemory.Transactor{})
	store := cache.NewStore(s.rows, cache.Options{TTL: time.Minute})
	urls := urlshortener.NewUrlShortenerService(store, urlshortener.RandomCodes{},
		realtime.NewBroadcaster(s.hub, nil), s.clicks, urlshortener.Options{CodeAttempts: 3})

	require.NoError(t, urlshortener.SeedAdmin(context.Background(), s.users, s.users, "root", "rootpass123"))

	s.engine = gee.New()
	RegisterRoutes(s.engine, Deps{
		Identity: identity,
		Urls:     urls,
		About:    urlshortener.NewAboutService(s.aboutPath),
		Hub:      s.hub,
		Tokens:   ts,
		Cookie: CookieOptions{
			Name:     "refreshToken",
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
			TTL:      time.Hour,
		},
		PublicBaseURL:  "https://sho.rt",
		RedirectStatus: http.StatusFound,
		Heartbeat:      time.Hour,
	})
	return s
}

type call struct {
	method string
	path   string
	body   string
	token  string
	cookie *http.Cookie
}

func (s *testServer) do(c call) *httptest.ResponseRecorder {
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

type session struct {
	auth   AuthResponse
	cookie *http.Cookie
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatalf("no refreshToken cookie in %v", rec.Header().Values("Set-Cookie"))
	return nil
}

func (s *testServer) signup(t *testing.T, name string) session {
	t.Helper()
	rec := s.do(call{
		method: http.MethodPost,
		path:   "/identity/signup",
		body:   `{"username":"` + name + `","password":"password123","confirmPassword":"password123"}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess.auth))
	sess.cookie = refreshCookie(t, rec)
	return sess
}

func (s *testServer) login(t *testing.T, name, password string) session {
	t.Helper()
	rec := s.do(call{
		method: http.MethodPost,
		path:   "/identity/login",
		body:   `{"username":"` + name + `","password":"` + password + `"}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess.auth))
	sess.cookie = refreshCookie(t, rec)
	return sess
}

func (s *testServer) create(t *testing.T, token, original string) UrlItem {
	t.Helper()
	rec := s.do(call{method: http.MethodPost, path: "/urls?url=" + original, token: token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item UrlItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	return item
}

func errorsOf(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var body gee.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Errors
}

func TestScenario_AliceAndBob(t *testing.T) {
	s := newTestServer(t)

	alice := s.signup(t, "alice")
	assert.Equal(t, "alice", alice.auth.User.Username)
	assert.NotEmpty(t, alice.auth.Token)
	assert.Equal(t, []string{}, alice.auth.Roles)
	assert.True(t, alice.cookie.HttpOnly)
	assert.True(t, alice.cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, alice.cookie.SameSite)

	rec := s.do(call{method: http.MethodPost, path: "/urls?url=https://example.com", token: alice.auth.Token})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item UrlItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	code := strings.TrimPrefix(item.UrlShortened, "https://sho.rt/")
	assert.Len(t, code, 6)
	assert.Equal(t, item.UrlShortened, rec.Header().Get("Location"))
	assert.Equal(t, alice.auth.User.ID, item.UserID)

	rec = s.do(call{method: http.MethodGet, path: "/" + code})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))

	rec = s.do(call{method: http.MethodPost, path: "/urls?url=https://example.com", token: alice.auth.Token})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgUrlAlreadyExist}, errorsOf(t, rec))

	bob := s.signup(t, "bob")
	rec = s.do(call{method: http.MethodDelete, path: "/urls/" + item.ID, token: bob.auth.Token})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgNotAuthorizedToUrl}, errorsOf(t, rec))

	rec = s.do(call{method: http.MethodDelete, path: "/urls/" + item.ID, token: alice.auth.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(call{method: http.MethodGet, path: "/urls/" + item.ID, token: alice.auth.Token})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgUrlNotFound}, errorsOf(t, rec))

	rec = s.do(call{method: http.MethodGet, path: "/" + code})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdentity_RefreshRotatesCookie(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")

	rec := s.do(call{method: http.MethodPost, path: "/identity/refresh", cookie: alice.cookie})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := refreshCookie(t, rec)
	assert.NotEqual(t, alice.cookie.Value, rotated.Value)
	assert.Equal(t, 3600, rotated.MaxAge)

	// the old value was rotated away; the stale cookie gets cleared
	rec = s.do(call{method: http.MethodPost, path: "/identity/refresh", cookie: alice.cookie})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgRefreshTokenExpired}, errorsOf(t, rec))
	assert.Less(t, refreshCookie(t, rec).MaxAge, 0)

	rec = s.do(call{method: http.MethodGet, path: "/identity/me", cookie: rotated})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Values("Set-Cookie"))
	var me AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, alice.auth.User, me.User)

	rec = s.do(call{method: http.MethodPost, path: "/identity/logout", cookie: rotated})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Less(t, refreshCookie(t, rec).MaxAge, 0)

	rec = s.do(call{method: http.MethodGet, path: "/identity/me", cookie: rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/identity/refresh"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentity_SignupValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{
		method: http.MethodPost,
		path:   "/identity/signup",
		body:   `{"userName":"carol","password":"password123","confirmPassword":"password123"}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(call{
		method: http.MethodPost,
		path:   "/identity/signup",
		body:   `{"username":"","password":"short","confirmPassword":"other"}`,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{
		urlshortener.MsgUsernameRequired,
		urlshortener.MsgPasswordTooShort,
		urlshortener.MsgPasswordsMismatch,
	}, errorsOf(t, rec))

	rec = s.do(call{
		method: http.MethodPost,
		path:   "/identity/signup",
		body:   `{"username":"carol","password":"password123","confirmPassword":"password123"}`,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgUsernameTaken}, errorsOf(t, rec))

	rec = s.do(call{method: http.MethodPost, path: "/identity/signup", body: `{"username":`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentity_LoginIsGeneric(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice")

	for _, body := range []string{
		`{"username":"alice","password":"wrong-password"}`,
		`{"username":"nobody","password":"password123"}`,
	} {
		rec := s.do(call{method: http.MethodPost, path: "/identity/login", body: body})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, []string{urlshortener.MsgInvalidCredentials}, errorsOf(t, rec))
	}

	root := s.login(t, "root", "rootpass123")
	assert.Equal(t, []string{urlshortener.RoleAdmin}, root.auth.Roles)
}

func TestUrls_RequireBearer(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{method: http.MethodPost, path: "/urls?url=https://example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(call{method: http.MethodPost, path: "/urls?url=https://example.com", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	alice := s.signup(t, "alice")
	rec = s.do(call{method: http.MethodPost, path: "/urls?url=ftp://example.com", token: alice.auth.Token})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgInvalidUrl}, errorsOf(t, rec))

	rec = s.do(call{method: http.MethodDelete, path: "/urls/not-a-uuid", token: alice.auth.Token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUrls_ListPagination(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	for i := 0; i < 13; i++ {
		s.create(t, alice.auth.Token, "https://example.com/"+string(rune('a'+i)))
	}

	list := func(query string) (int, PageResponse) {
		rec := s.do(call{method: http.MethodGet, path: "/urls" + query})
		var page PageResponse
		if rec.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		}
		return rec.Code, page
	}

	code, page := list("")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 13, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 5, page.PageSize)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "https://example.com/a", page.Items[0].UrlOriginal)
	assert.True(t, strings.HasPrefix(page.Items[0].UrlShortened, "https://sho.rt/"))

	_, page = list("?pageNumber=3&pageSize=5")
	require.Len(t, page.Items, 3)
	assert.Equal(t, "https://example.com/m", page.Items[2].UrlOriginal)

	_, page = list("?pageNumber=0&pageSize=-4")
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 1, page.PageSize)
	assert.Equal(t, 13, page.TotalPages)

	_, page = list("?pageNumber=9")
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)

	code, _ = list("?pageSize=five")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUrls_DetailCountsClicks(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup(t, "alice")
	item := s.create(t, alice.auth.Token, "https://example.com")
	code := strings.TrimPrefix(item.UrlShortened, "https://sho.rt/")

	req := httptest.NewRequest(http.MethodGet, "/"+code, nil)
	req.Header.Set("User-Agent", "curl/8")
	req.Header.Set("Referer", "https://news.example")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	var click urlshortener.ClickEvent
	select {
	case click = <-s.clicks.Events():
	default:
		t.Fatal("no click recorded")
	}
	assert.Equal(t, code, click.Code)
	assert.Equal(t, "curl/8", click.UserAgent)
	assert.Equal(t, "https://news.example", click.Referer)
	require.NoError(t, s.rows.SaveClicks(context.Background(), []urlshortener.ClickEvent{click}))

	rec = s.do(call{method: http.MethodGet, path: "/urls/" + item.ID, token: alice.auth.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail UrlDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, item, detail.UrlItem)
	assert.Equal(t, int64(1), detail.Clicks)
	assert.Equal(t, UserResponse{ID: alice.auth.User.ID, Username: "alice"}, detail.User)
	assert.False(t, detail.CreatedAt.IsZero())

	rec = s.do(call{method: http.MethodGet, path: "/urls/" + item.ID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRedirect_UnknownCode(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/nope42", "/not-a-code!"} {
		rec := s.do(call{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	select {
	case e := <-s.clicks.Events():
		t.Fatalf("unexpected click %+v", e)
	default:
	}
}

func TestAbout_GetAndAdminUpdate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(call{method: http.MethodGet, path: "/about"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "base62 codes", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	alice := s.signup(t, "alice")
	rec = s.do(call{method: http.MethodPut, path: "/about", body: `"hacked"`, token: alice.auth.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	root := s.login(t, "root", "rootpass123")
	rec = s.do(call{method: http.MethodPut, path: "/about", body: `"random codes\nof length 6"`, token: root.auth.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "random codes\nof length 6", rec.Body.String())

	rec = s.do(call{method: http.MethodPut, path: "/about", body: "plain text", token: root.auth.Token})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(call{method: http.MethodGet, path: "/about"})
	assert.Equal(t, "plain text", rec.Body.String())

	require.NoError(t, os.Remove(s.aboutPath))
	rec = s.do(call{method: http.MethodGet, path: "/about"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{urlshortener.MsgCannotGetAbout}, errorsOf(t, rec))
}

type sseEvent struct {
	id, name, data string
}

// readEvents parses the stream into events, skipping comment lines.
func readEvents(body *bufio.Reader, out chan<- sseEvent) {
	defer close(out)
	var cur sseEvent
	for {
		line, err := body.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if cur.name != "" {
				out <- cur
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			cur.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func next(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok, "stream closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return sseEvent{}
	}
}

func TestEvents_StreamKeepsViewportInStep(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	alice := s.signup(t, "alice")
	var seeded []UrlItem
	for i := 0; i < 6; i++ {
		seeded = append(seeded, s.create(t, alice.auth.Token, "https://example.com/"+string(rune('a'+i))))
	}

	// a viewer sitting on the last page: 6 items, page size 5
	rec := s.do(call{method: http.MethodGet, path: "/urls?pageNumber=2&pageSize=5"})
	require.Equal(t, http.StatusOK, rec.Code)
	var page PageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	items := make([]urlshortener.Url, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, urlshortener.Url{ID: it.ID, Original: it.UrlOriginal, UserID: it.UserID})
	}
	view := realtime.NewViewport(urlshortener.NewPage(items, page.TotalCount, page.PageNumber, page.PageSize))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/hubs/urls", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 8)
	go readEvents(bufio.NewReader(resp.Body), events)
	require.Eventually(t, func() bool { return s.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	created := s.create(t, alice.auth.Token, "https://example.com/new")
	e := next(t, events)
	assert.Equal(t, realtime.EventUrlCreated, e.name)
	assert.Len(t, e.id, 26)
	var got UrlItem
	require.NoError(t, json.Unmarshal([]byte(e.data), &got))
	assert.Equal(t, created, got)

	action := view.ApplyCreated(urlshortener.Url{ID: got.ID, Original: got.UrlOriginal, UserID: got.UserID})
	assert.Equal(t, realtime.Appended, action)
	assert.Equal(t, 7, view.TotalCount)
	require.Len(t, view.Items, 2)

	rec = s.do(call{method: http.MethodDelete, path: "/urls/" + seeded[5].ID, token: alice.auth.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	e = next(t, events)
	assert.Equal(t, realtime.EventUrlDeleted, e.name)
	var deleted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.data), &deleted))
	assert.Equal(t, seeded[5].ID, deleted.ID)

	assert.Equal(t, realtime.Refetch, view.ApplyDeleted(deleted.ID))
	assert.Equal(t, 6, view.TotalCount)

	// closing the hub ends the stream
	s.hub.Close()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}
