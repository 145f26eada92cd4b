package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupServer(t *testing.T, opts Options) (*Server, *Store) {
	t.Helper()
	s := openStore(t)
	return NewServer(s, opts), s
}

func multipartBody(t *testing.T, field, filename, ctype string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", ctype)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	} else {
		mw.WriteField("note", "no file here")
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func upload(srv http.Handler, body io.Reader, ctype string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/storeImage", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t, Options{})
	srv.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS header, got %q", got)
	}
	resp := decode(t, w)
	if !resp.Success || resp.Timestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("unexpected health response %+v", resp)
	}
}

func TestGetImagesEmptyStore(t *testing.T) {
	srv, _ := setupServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/getImages", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"images":[]`) {
		t.Fatalf("expected an empty images array, got %s", w.Body.String())
	}
	resp := decode(t, w)
	if !resp.Success || resp.Images == nil || len(*resp.Images) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStoreImageRejectsOversized(t *testing.T) {
	srv, s := setupServer(t, Options{})
	body, ctype := multipartBody(t, "image", "huge.jpg", "image/jpeg", make([]byte, 15<<20))
	w := upload(srv, body, ctype)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp.Success || !strings.Contains(resp.Message, "10MB") {
		t.Fatalf("unexpected response %+v", resp)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("partial upload left behind: %v", entries)
	}
}

func TestStoreImageRejectsNonImage(t *testing.T) {
	srv, _ := setupServer(t, Options{})
	body, ctype := multipartBody(t, "image", "notes.txt", "text/plain", []byte("hello"))
	w := upload(srv, body, ctype)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if resp := decode(t, w); resp.Success {
		t.Fatalf("expected failure, got %+v", resp)
	}
}

func TestStoreImageMissingFile(t *testing.T) {
	srv, _ := setupServer(t, Options{})
	body, ctype := multipartBody(t, "", "", "", nil)
	w := upload(srv, body, ctype)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if resp := decode(t, w); resp.Success || resp.Message != ErrNoFile.Error() {
		t.Fatalf("unexpected response %+v", resp)
	}

	w = upload(srv, strings.NewReader("{}"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for non-multipart body, got %d", w.Code)
	}
}

func TestStoreImageAndServe(t *testing.T) {
	var notified []Stored
	srv, _ := setupServer(t, Options{
		PublicURL: "http://kiosk.local:5260",
		OnStored:  func(s Stored) { notified = append(notified, s) },
	})
	body, ctype := multipartBody(t, "image", "drawing.jpg", "image/jpeg", []byte("jpegdata"))
	w := upload(srv, body, ctype)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if !resp.Success || resp.UploadedFile == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	stored := *resp.UploadedFile
	if !strings.HasPrefix(stored.Filename, "drawing_") || filepath.Ext(stored.Filename) != ".jpg" {
		t.Fatalf("unexpected filename %q", stored.Filename)
	}
	if stored.Size != 8 || stored.MIMEType != "image/jpeg" || stored.OriginalName != "drawing.jpg" {
		t.Fatalf("unexpected metadata %+v", stored)
	}
	if len(notified) != 1 || notified[0].Filename != stored.Filename {
		t.Fatalf("OnStored not called: %+v", notified)
	}

	req := httptest.NewRequest(http.MethodGet, "/getImages", nil)
	lw := httptest.NewRecorder()
	srv.ServeHTTP(lw, req)
	list := decode(t, lw)
	if list.Images == nil || len(*list.Images) != 1 {
		t.Fatalf("expected one image, got %+v", list)
	}
	img := (*list.Images)[0]
	if img.URL != "http://kiosk.local:5260/images/"+stored.Filename {
		t.Fatalf("unexpected url %q", img.URL)
	}

	req = httptest.NewRequest(http.MethodGet, "/images/"+stored.Filename, nil)
	fw := httptest.NewRecorder()
	srv.ServeHTTP(fw, req)
	if fw.Code != http.StatusOK || fw.Body.String() != "jpegdata" {
		t.Fatalf("static serve failed: %d %q", fw.Code, fw.Body.String())
	}
}

func TestImagesOnlyServesImages(t *testing.T) {
	srv, s := setupServer(t, Options{})
	os.WriteFile(filepath.Join(s.Dir(), "secret.txt"), []byte("x"), 0644)
	req := httptest.NewRequest(http.MethodGet, "/images/secret.txt", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := setupServer(t, Options{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	ctx := context.Background()
	if _, err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	images, err := c.List(ctx)
	if err != nil || len(images) != 0 {
		t.Fatalf("List on empty store: %v %v", images, err)
	}

	stored, err := c.Upload(ctx, "canvas.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	images, err = c.List(ctx)
	if err != nil || len(images) != 1 || images[0].Filename != stored.Filename {
		t.Fatalf("List after upload: %+v %v", images, err)
	}
	data, err := c.Fetch(ctx, images[0].URL)
	if err != nil || !bytes.Equal(data, []byte{0xff, 0xd8, 0xff}) {
		t.Fatalf("Fetch: %v %v", data, err)
	}

	if _, err := c.Upload(ctx, "x.txt", "text/plain", []byte("x")); err == nil {
		t.Fatal("expected upload of text to fail")
	}
}
