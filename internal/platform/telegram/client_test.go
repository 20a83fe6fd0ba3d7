package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_SendMessage(t *testing.T) {
	t.Parallel()

	var gotPath string
	var got sendMessageReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("123:abc").WithAPIURL(srv.URL + "/")
	if err := c.SendMessage(context.Background(), 77, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("path=%q", gotPath)
	}
	if got.ChatID != 77 || got.Text != "hello" {
		t.Fatalf("body=%+v", got)
	}
}

func TestClient_SendDocument(t *testing.T) {
	t.Parallel()

	var chatID, fileName, content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendDocument") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		chatID = r.FormValue("chat_id")
		f, hdr, err := r.FormFile("document")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		fileName, content = hdr.Filename, string(b)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("t").WithAPIURL(srv.URL)
	if err := c.SendDocument(context.Background(), -100, []byte("%PDF-1.4"), "report_x.pdf"); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if chatID != "-100" || fileName != "report_x.pdf" || content != "%PDF-1.4" {
		t.Fatalf("chat_id=%q file=%q content=%q", chatID, fileName, content)
	}
}

func TestClient_Non200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := NewClient("t").WithAPIURL(srv.URL).SendMessage(context.Background(), 1, "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err=%v", err)
	}
}
