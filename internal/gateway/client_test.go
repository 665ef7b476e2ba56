package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func testCreds() Credentials {
	return Credentials{UserID: "acct-1", Token: "tok-1"}
}

func TestSendBulkRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		json.NewEncoder(w).Encode(BulkSendResponse{
			Results: BulkResults{Success: []string{"111"}, Failed: nil},
			Summary: BulkSummary{SuccessCount: 1},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	segments := []Segment{{Type: "body", Parameters: []Parameter{{Type: "text", Text: "Alice"}}}}
	resp, err := client.SendBulk(context.Background(), testCreds(), "tmpl-1", []string{"111"}, segments)
	if err != nil {
		t.Fatalf("SendBulk failed: %v", err)
	}

	if gotPath != "/templates/tmpl-1/send-bulk" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("auth = %q", gotAuth)
	}
	if string(gotBody["recipients"]) != `["111"]` {
		t.Errorf("recipients = %s", gotBody["recipients"])
	}
	if string(gotBody["segments"]) != `[{"type":"body","parameters":[{"type":"text","text":"Alice"}]}]` {
		t.Errorf("segments = %s", gotBody["segments"])
	}
	if resp.Summary.SuccessCount != 1 {
		t.Errorf("success_count = %d", resp.Summary.SuccessCount)
	}
}

func TestSendBulkRejectedSubmission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	if _, err := client.SendBulk(context.Background(), testCreds(), "tmpl-1", []string{"111"}, nil); err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestBulkProgressQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/templates/bulk-progress" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("user_id") != "acct-1" || r.URL.Query().Get("template_id") != "tmpl-1" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(Progress{Total: 5, Completed: 3})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	p, err := client.BulkProgress(context.Background(), testCreds(), "tmpl-1")
	if err != nil {
		t.Fatalf("BulkProgress failed: %v", err)
	}
	if p.Total != 5 || p.Completed != 3 {
		t.Errorf("progress = %+v", p)
	}
}

func TestCreateUploadSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/session" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["user_id"] != "acct-1" || req["file_name"] != "promo.jpg" || req["file_type"] != "image/jpeg" {
			t.Errorf("request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	sessionID, err := client.CreateUploadSession(context.Background(), testCreds(), "promo.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("CreateUploadSession failed: %v", err)
	}
	if sessionID != "sess-1" {
		t.Errorf("session_id = %q", sessionID)
	}
}

func TestUploadBinaryMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if r.FormValue("session_id") != "sess-1" || r.FormValue("user_id") != "acct-1" {
			t.Errorf("form = session_id %q user_id %q", r.FormValue("session_id"), r.FormValue("user_id"))
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part missing: %v", err)
		}
		raw, _ := io.ReadAll(file)
		if string(raw) != "binary-bytes" {
			t.Errorf("file content = %q", raw)
		}
		json.NewEncoder(w).Encode(map[string]string{"handle": "h123"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	handle, err := client.UploadBinary(context.Background(), testCreds(), "sess-1", []byte("binary-bytes"))
	if err != nil {
		t.Fatalf("UploadBinary failed: %v", err)
	}
	if handle != "h123" {
		t.Errorf("handle = %q", handle)
	}
}

func TestGetTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/templates/tmpl-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Template{
			ID:       "tmpl-1",
			Name:     "order_update",
			Language: "en_US",
			Components: []TemplateComponent{
				{Type: SegmentBody, Text: "Hi {{1}}"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	tmpl, err := client.GetTemplate(context.Background(), testCreds(), "tmpl-1")
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if tmpl.Name != "order_update" || len(tmpl.Components) != 1 {
		t.Errorf("template = %+v", tmpl)
	}
}

func TestListMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/list" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("user_id") != "acct-1" {
			t.Errorf("user_id = %q", r.URL.Query().Get("user_id"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"media": []MediaItem{{Handle: "h123", FileName: "promo.jpg", FileType: "image/jpeg"}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop())
	items, err := client.ListMedia(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("ListMedia failed: %v", err)
	}
	if len(items) != 1 || items[0].Handle != "h123" {
		t.Errorf("items = %+v", items)
	}
}
