package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		requestBody     string
		headers         map[string]string
		wantEncoding    string
		wantBodySubstr  string
	}{
		{
			name:           "client accepts gzip",
			requestBody:    `{"checkoutId":"c1"}`,
			headers:        map[string]string{"Accept-Encoding": "gzip"},
			wantEncoding:   "gzip",
			wantBodySubstr: `received: {"checkoutId":"c1"}`,
		},
		{
			name:           "client does not accept gzip",
			requestBody:    "plain request",
			headers:        map[string]string{},
			wantEncoding:   "",
			wantBodySubstr: "received: plain request",
		},
		{
			name:           "compressed request body",
			requestBody:    "compressed request",
			headers:        map[string]string{"Content-Encoding": "gzip", "Accept-Encoding": "gzip"},
			wantEncoding:   "gzip",
			wantBodySubstr: "received: compressed request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader
			if strings.Contains(tt.headers["Content-Encoding"], "gzip") {
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				if _, err := zw.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("write gzip: %v", err)
				}
				if err := zw.Close(); err != nil {
					t.Fatalf("close gzip: %v", err)
				}
				requestBody = &buf
			} else {
				requestBody = strings.NewReader(tt.requestBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/test", requestBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()

			h := GzipMiddleware(http.HandlerFunc(echoHandler))
			h.ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding = %q, want %q", ce, tt.wantEncoding)
			}

			var body []byte
			var err error
			if res.Header.Get("Content-Encoding") == "gzip" {
				zr, zerr := gzip.NewReader(res.Body)
				if zerr != nil {
					t.Fatalf("new gzip reader: %v", zerr)
				}
				defer zr.Close()
				body, err = io.ReadAll(zr)
			} else {
				body, err = io.ReadAll(res.Body)
			}
			if err != nil {
				t.Fatalf("read body: %v", err)
			}

			if !strings.Contains(string(body), tt.wantBodySubstr) {
				t.Fatalf("body %q does not contain %q", string(body), tt.wantBodySubstr)
			}
		})
	}
}
