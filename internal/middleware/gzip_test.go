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

// echoHandler возвращает тело запроса обратно, сохраняя его Content-Type.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	payload, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append([]byte("echo: "), payload...))
}

func gzipCompress(t *testing.T, payload string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(payload)); err != nil {
		t.Fatalf("compress payload: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		contentType  string
		acceptGzip   bool
		compressBody bool
		wantEncoding string
	}{
		{
			name:         "response compressed for gzip-capable client",
			payload:      `{"order":[{"goodsId":"g1","count":2}]}`,
			contentType:  "application/json",
			acceptGzip:   true,
			wantEncoding: "gzip",
		},
		{
			name:        "plain response for client without gzip",
			payload:     `{"barcode":"A0123"}`,
			contentType: "application/json",
		},
		{
			name:         "compressed request body is decompressed",
			payload:      `{"paidAmount":600,"paidMeans":"cash"}`,
			contentType:  "application/json",
			acceptGzip:   true,
			compressBody: true,
			wantEncoding: "gzip",
		},
		{
			name:         "non-json content type is preserved",
			payload:      "plain text payload",
			contentType:  "text/html",
			acceptGzip:   true,
			wantEncoding: "gzip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.payload)
			if tt.compressBody {
				body = gzipCompress(t, tt.payload)
			}

			req := httptest.NewRequest(http.MethodPost, "/echo", body)
			req.Header.Set("Content-Type", tt.contentType)
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}
			if tt.compressBody {
				req.Header.Set("Content-Encoding", "gzip")
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
			}
			if ct := res.Header.Get("Content-Type"); ct != tt.contentType {
				t.Fatalf("content-type = %q, want %q", ct, tt.contentType)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding = %q, want %q", ce, tt.wantEncoding)
			}

			var reader io.Reader = res.Body
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("open gzip response: %v", err)
				}
				defer gr.Close()
				reader = gr
			}

			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read response: %v", err)
			}
			if want := "echo: " + tt.payload; string(got) != want {
				t.Fatalf("body = %q, want %q", string(got), want)
			}
		})
	}
}
