package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facultyeval/internal/domain/account"
)

// TestGet_AttachesBearer verifies authenticated calls carry the session token.
func TestGet_AttachesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "faculty", r.URL.Query().Get("type"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Get(context.Background(), "tok", "/api/admin/dashboard/stats", url.Values{"type": {"faculty"}})
	require.NoError(t, err, "non-2xx is not a transport error")
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.False(t, resp.OK())
}

// TestGet_TransportError verifies an unreachable API is an error.
func TestGet_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "", "/api/classes", nil)
	assert.Error(t, err)
}

// TestLogin verifies token extraction and server messages.
func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		switch in.Password {
		case "right":
			_, _ = w.Write([]byte(`{"success":true,"token":"jwt","user":{"id":1,"userType":1}}`))
		case "silent":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid credentials"}`))
		}
	}))
	defer srv.Close()
	c := New(srv.URL)

	res, err := c.Login(context.Background(), LoginRequest{Email: "a@b", Password: "right"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.JSONEq(t, `{"id":1,"userType":1}`, res.UserJSON)

	_, err = c.Login(context.Background(), LoginRequest{Email: "a@b", Password: "wrong"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	_, err = c.Login(context.Background(), LoginRequest{Email: "a@b", Password: "silent"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Login failed", apiErr.Message)
}

// TestRegister_Multipart verifies field layout, file part and progress reporting.
func TestRegister_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "faculty", r.FormValue("userType"))
		assert.Equal(t, "F-9", r.FormValue("schoolId"))
		assert.Equal(t, []string{"c1", "c2"}, r.MultipartForm.Value["classesHandled[]"])
		assert.Empty(t, r.MultipartForm.Value["classId"])
		assert.Empty(t, r.MultipartForm.Value["selectedAvatar"])

		f, hdr, err := r.FormFile("profilePicture")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "me.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(data))

		_, _ = w.Write([]byte(`{"success":true,"message":"Registered"}`))
	}))
	defer srv.Close()

	var last, total int64
	msg, err := New(srv.URL).Register(context.Background(), RegisterRequest{
		UserType:        "faculty",
		SchoolID:        "F-9",
		Firstname:       "Grace",
		Lastname:        "Hopper",
		Email:           "g@h",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		ClassID:         "ignored",
		ClassesHandled:  []string{"c1", "c2"},
		Picture:         &Picture{Filename: "me.png", ContentType: "image/png", Data: strings.NewReader("PNGDATA")},
	}, func(sent, size int64) { last, total = sent, size })

	require.NoError(t, err)
	assert.Equal(t, "Registered", msg)
	assert.Positive(t, total)
	assert.Equal(t, total, last)
}

// TestRegister_StudentSendsClassID verifies the student-only field.
func TestRegister_StudentSendsClassID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "c7", r.FormValue("classId"))
		assert.Equal(t, "lebron.png", r.FormValue("selectedAvatar"))
		assert.Empty(t, r.MultipartForm.Value["classesHandled[]"])
		assert.Empty(t, r.MultipartForm.File)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"message":"Email already registered"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Register(context.Background(), RegisterRequest{
		UserType: "student", ClassID: "c7", ClassesHandled: []string{"x"}, SelectedAvatar: "lebron.png",
	}, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Email already registered", apiErr.Message)
}

// TestRegister_Timeout verifies the upload deadline applies.
func TestRegister_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithRegisterTimeout(50*time.Millisecond)).Register(context.Background(), RegisterRequest{UserType: "student"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// TestRegister_OutlastsCallTimeout verifies the short per-call deadline does
// not apply to the registration upload.
func TestRegister_OutlastsCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(20*time.Millisecond), WithRegisterTimeout(time.Second))
	msg, err := c.Register(context.Background(), RegisterRequest{UserType: "student"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)

	_, err = c.Get(context.Background(), "", "/slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestListClasses verifies plain arrays decode and other shapes read as empty.
func TestListClasses(t *testing.T) {
	body := `[{"id":1,"curriculum":"BSIT","level":2,"section":"A"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := New(srv.URL)

	classes, err := c.ListClasses(context.Background())
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "1", classes[0].ID.String())
	assert.Equal(t, "BSIT - Year 2 - Section A", classes[0].Label())

	body = `{"success":true,"data":[]}`
	classes, err = c.ListClasses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, classes)
}

// TestListClasses_SharesInflight verifies concurrent loads collapse into one request.
func TestListClasses_SharesInflight(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c := New(srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListClasses(context.Background())
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

// TestListClasses_CanceledCallerDoesNotFailOthers verifies a caller that goes
// away leaves the shared request running for the callers still waiting.
func TestListClasses_CanceledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-gate
		_, _ = w.Write([]byte(`[{"id":3,"curriculum":"BSIT","level":1,"section":"B"}]`))
	}))
	defer srv.Close()
	c := New(srv.URL)

	type result struct {
		classes []account.Class
		err     error
	}
	first, cancel := context.WithCancel(context.Background())
	defer cancel()
	gone := make(chan result, 1)
	go func() {
		classes, err := c.ListClasses(first)
		gone <- result{classes, err}
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	waiting := make(chan result, 1)
	go func() {
		classes, err := c.ListClasses(context.Background())
		waiting <- result{classes, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	r := <-gone
	assert.ErrorIs(t, r.err, context.Canceled)

	close(gate)
	r = <-waiting
	require.NoError(t, r.err)
	require.Len(t, r.classes, 1)
	assert.Equal(t, "3", r.classes[0].ID.String())
	assert.Equal(t, int32(1), hits.Load())
}
