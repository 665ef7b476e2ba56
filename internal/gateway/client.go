package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Credentials identify the sending account on every gateway call. They are
// passed explicitly; the client holds no ambient user state.
type Credentials struct {
	UserID string
	Token  string
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "gateway").Logger(),
	}
}

// --- Wire Structures ---

// Segment is one compiled message component in the gateway's wire format.
// Field names and ordering are a bit-exact contract with the gateway.
type Segment struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"` // for buttons
	Parameters []Parameter `json:"parameters"`
}

type Parameter struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	Image    *MediaRef `json:"image,omitempty"`
	Video    *MediaRef `json:"video,omitempty"`
	Document *MediaRef `json:"document,omitempty"`
}

type MediaRef struct {
	ID string `json:"id"`
}

// --- Template Definition Structures ---

// Segment and button types as the gateway's template schema defines them.
const (
	SegmentHeader  = "HEADER"
	SegmentBody    = "BODY"
	SegmentFooter  = "FOOTER"
	SegmentButtons = "BUTTONS"

	FormatText     = "TEXT"
	FormatImage    = "IMAGE"
	FormatVideo    = "VIDEO"
	FormatDocument = "DOCUMENT"

	ButtonQuickReply  = "QUICK_REPLY"
	ButtonURL         = "URL"
	ButtonPhoneNumber = "PHONE_NUMBER"
)

type Template struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Language   string              `json:"language"`
	Category   string              `json:"category,omitempty"`
	Status     string              `json:"status,omitempty"`
	Components []TemplateComponent `json:"components"`
}

type TemplateComponent struct {
	Type    string           `json:"type"`
	Format  string           `json:"format,omitempty"` // HEADER only
	Text    string           `json:"text,omitempty"`
	Buttons []TemplateButton `json:"buttons,omitempty"`
}

type TemplateButton struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	URL         string `json:"url,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, creds Credentials, method, path string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+creds.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway error: %s - %s", resp.Status, string(respBody))
	}

	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

// --- Template Methods ---

// GetTemplate fetches a template definition by id.
func (c *Client) GetTemplate(ctx context.Context, creds Credentials, templateID string) (*Template, error) {
	var tmpl Template
	path := "/templates/" + url.PathEscape(templateID)
	if err := c.sendRequest(ctx, creds, http.MethodGet, path, nil, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

type templateList struct {
	Data []Template `json:"data"`
}

// ListTemplates fetches all template definitions for the account.
func (c *Client) ListTemplates(ctx context.Context, creds Credentials) ([]Template, error) {
	var list templateList
	if err := c.sendRequest(ctx, creds, http.MethodGet, "/templates", nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// --- Send Methods ---

type sendRequest struct {
	To       string    `json:"to"`
	Segments []Segment `json:"segments"`
}

type SendResponse struct {
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Send delivers a compiled template to a single recipient.
func (c *Client) Send(ctx context.Context, creds Credentials, templateID, to string, segments []Segment) (*SendResponse, error) {
	var resp SendResponse
	path := "/templates/" + url.PathEscape(templateID) + "/send"
	if err := c.sendRequest(ctx, creds, http.MethodPost, path, sendRequest{To: to, Segments: segments}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type bulkSendRequest struct {
	Recipients []string  `json:"recipients"`
	Segments   []Segment `json:"segments"`
}

// FailedRecipient carries the opaque gateway error for one recipient.
type FailedRecipient struct {
	Recipient string          `json:"recipient"`
	Error     json.RawMessage `json:"error,omitempty"`
}

type BulkResults struct {
	Success []string          `json:"success"`
	Failed  []FailedRecipient `json:"failed"`
}

type BulkSummary struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
}

type BulkSendResponse struct {
	Results BulkResults `json:"results"`
	Summary BulkSummary `json:"summary"`
}

// SendBulk submits one batch covering all recipients. The call blocks until
// the gateway has processed the whole batch; the response carries the
// authoritative per-recipient partition.
func (c *Client) SendBulk(ctx context.Context, creds Credentials, templateID string, recipients []string, segments []Segment) (*BulkSendResponse, error) {
	var resp BulkSendResponse
	path := "/templates/" + url.PathEscape(templateID) + "/send-bulk"
	req := bulkSendRequest{Recipients: recipients, Segments: segments}
	c.log.Debug().Str("template_id", templateID).Int("recipients", len(recipients)).Msg("posting bulk send")
	if err := c.sendRequest(ctx, creds, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Progress reports gateway-side completion counts for an in-flight batch.
// Total == 0 means the batch has not started yet.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

func (c *Client) BulkProgress(ctx context.Context, creds Credentials, templateID string) (Progress, error) {
	var p Progress
	q := url.Values{}
	q.Set("user_id", creds.UserID)
	q.Set("template_id", templateID)
	if err := c.sendRequest(ctx, creds, http.MethodGet, "/templates/bulk-progress?"+q.Encode(), nil, &p); err != nil {
		return Progress{}, err
	}
	return p, nil
}

// --- Media Methods ---

type uploadSessionRequest struct {
	UserID   string `json:"user_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

type uploadSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateUploadSession opens an upload session for the declared file. The
// returned session id must be followed by UploadBinary before any handle
// exists.
func (c *Client) CreateUploadSession(ctx context.Context, creds Credentials, fileName, fileType string) (string, error) {
	req := uploadSessionRequest{UserID: creds.UserID, FileName: fileName, FileType: fileType}
	var resp uploadSessionResponse
	if err := c.sendRequest(ctx, creds, http.MethodPost, "/uploads/session", req, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

type uploadBinaryResponse struct {
	Handle string `json:"handle"`
}

// UploadBinary pushes the raw file bytes for an open session and returns the
// opaque media handle.
func (c *Client) UploadBinary(ctx context.Context, creds Credentials, sessionID string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return "", err
	}
	part.Write(data)

	writer.WriteField("user_id", creds.UserID)
	writer.WriteField("session_id", sessionID)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/uploads/binary", body)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("upload failed: %s - %s", resp.Status, string(respBody))
	}

	var out uploadBinaryResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	return out.Handle, nil
}

// MediaItem is a previously uploaded asset the account can reference again
// without re-uploading.
type MediaItem struct {
	Handle    string `json:"handle"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	CreatedAt string `json:"created_at,omitempty"`
}

type mediaListResponse struct {
	Media []MediaItem `json:"media"`
}

func (c *Client) ListMedia(ctx context.Context, creds Credentials) ([]MediaItem, error) {
	q := url.Values{}
	q.Set("user_id", creds.UserID)
	var resp mediaListResponse
	if err := c.sendRequest(ctx, creds, http.MethodGet, "/media/list?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Media, nil
}
