// Package pinata uploads document versions to IPFS through the Pinata
// pinning service.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"doccloud/internal/blob"
)

const DefaultUploadURL = "https://uploads.pinata.cloud/v3/files"

// FilePrefix is prepended to the document name to form the pinned file name.
const FilePrefix = "HACKATHON "

var _ blob.Store = &Client{}

type Config struct {
	JWT       string
	Gateway   string
	UploadURL string
	// Network is "private" or "public".
	Network string
}

type Client struct {
	config Config
	http   *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Client) {
		p.http = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.Network == "" {
		cfg.Network = "private"
	}
	c := &Client{config: cfg, http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type uploadResponse struct {
	Data struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		CID         string            `json:"cid"`
		Size        int64             `json:"size"`
		MimeType    string            `json:"mime_type"`
		KeyValues   map[string]string `json:"keyvalues"`
		CreatedAt   string            `json:"created_at"`
		IsDuplicate *bool             `json:"is_duplicate"`
	} `json:"data"`
}

// Upload pins data as a text/plain file. The blob store's dedup signal is
// returned unchanged.
func (c *Client) Upload(ctx context.Context, data []byte, meta blob.Metadata) (blob.Result, error) {
	body, contentType, err := c.encode(data, meta)
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: encoding request: %w", blob.ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.UploadURL, body)
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.config.JWT)

	resp, err := c.http.Do(req)
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return blob.Result{}, fmt.Errorf("%w: pinata returned %s: %s", blob.ErrUpload, resp.Status, bytes.TrimSpace(msg))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return blob.Result{}, fmt.Errorf("%w: decoding pinata response: %w", blob.ErrUpload, err)
	}
	if out.Data.CID == "" {
		return blob.Result{}, fmt.Errorf("%w: pinata response carried no cid", blob.ErrUpload)
	}

	return blob.Result{
		ContentAddress: out.Data.CID,
		ExternalID:     out.Data.ID,
		URL:            c.GatewayURL(out.Data.CID),
		IsDuplicate:    out.Data.IsDuplicate != nil && *out.Data.IsDuplicate,
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// escapeQuotes quotes a multipart parameter the way mime/multipart does.
func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (c *Client) encode(data []byte, meta blob.Metadata) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := FilePrefix + meta.Name
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	keyvalues, err := json.Marshal(map[string]string{
		"versionNumber":      strconv.Itoa(meta.VersionNumber),
		"previousExternalId": meta.PreviousExternalID,
	})
	if err != nil {
		return nil, "", err
	}

	fields := []struct{ k, v string }{
		{"network", c.config.Network},
		{"name", name},
		{"keyvalues", string(keyvalues)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.k, f.v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// GatewayURL returns the gateway link for cid, or "" without a gateway.
func (c *Client) GatewayURL(cid string) string {
	if c.config.Gateway == "" {
		return ""
	}
	return "https://" + c.config.Gateway + "/ipfs/" + cid
}
