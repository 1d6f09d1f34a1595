package model

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrNotFound          = errors.New("document not found")
)

// NoExternalID is passed as the previous external id when the first version
// of a document is uploaded.
const NoExternalID = "none"

// VersionRecord is one saved revision of a document. It is never modified
// after it has been appended to a history.
type VersionRecord struct {
	Text           string
	Timestamp      time.Time
	ContentAddress string
	ExternalID     string
	VersionNumber  int
}

// versionJSON is the wire and snapshot form of a VersionRecord. The version
// number is positional and therefore not stored.
type versionJSON struct {
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"` // unix ms
	CID        string `json:"cid"`
	ExternalID string `json:"externalId,omitempty"`
}

func (v VersionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionJSON{
		Text:       v.Text,
		Timestamp:  v.Timestamp.UnixMilli(),
		CID:        v.ContentAddress,
		ExternalID: v.ExternalID,
	})
}

func (v *VersionRecord) UnmarshalJSON(data []byte) error {
	var raw versionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = VersionRecord{
		Text:           raw.Text,
		Timestamp:      time.UnixMilli(raw.Timestamp).UTC(),
		ContentAddress: raw.CID,
		ExternalID:     raw.ExternalID,
	}
	return nil
}

// DocumentHistory is the ordered chain of versions saved under one name.
type DocumentHistory struct {
	Name     string
	Versions []VersionRecord
}

// Latest returns the most recent version, if any.
func (h DocumentHistory) Latest() (VersionRecord, bool) {
	if len(h.Versions) == 0 {
		return VersionRecord{}, false
	}
	return h.Versions[len(h.Versions)-1], true
}

// Clone returns a copy that shares no slice with h.
func (h DocumentHistory) Clone() DocumentHistory {
	versions := make([]VersionRecord, len(h.Versions))
	copy(versions, h.Versions)
	return DocumentHistory{Name: h.Name, Versions: versions}
}

// Snapshot is the whole store: document name to ordered versions.
type Snapshot map[string][]VersionRecord

type CommitResult struct {
	ContentAddress string `json:"cid"`
	Appended       bool   `json:"appended"`
	VersionNumber  int    `json:"versionNumber"`
	GatewayURL     string `json:"gatewayUrl,omitempty"`
}

type SaveDocRequest struct {
	Name *string `json:"name"`
	Text *string `json:"text"`
}

type SaveDocResponse struct {
	Message       string `json:"message"`
	CID           string `json:"cid"`
	Appended      bool   `json:"appended"`
	VersionNumber int    `json:"versionNumber"`
	GatewayURL    string `json:"gatewayUrl,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type VersionResponse struct {
	VersionNumber int    `json:"versionNumber"`
	Text          string `json:"text"`
	Timestamp     int64  `json:"timestamp"`
	CID           string `json:"cid"`
	ExternalID    string `json:"externalId,omitempty"`
	WordCount     int    `json:"wordCount"`
}

type HistoryResponse struct {
	Name     string            `json:"name"`
	Status   string            `json:"status"`
	Versions []VersionResponse `json:"versions"`
}

type VersionSummary struct {
	CID        string    `json:"cid"`
	Timestamp  time.Time `json:"timestamp"`
	WordCount  int       `json:"wordCount"`
	Characters int       `json:"characters"`
	Size       string    `json:"size"`
	Content    string    `json:"content"`
}

type DocumentSummary struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	CreatedAt        time.Time        `json:"createdAt"`
	LastModified     time.Time        `json:"lastModified"`
	TotalVersions    int              `json:"totalVersions"`
	CurrentWordCount int              `json:"currentWordCount"`
	Status           string           `json:"status"`
	Versions         []VersionSummary `json:"versions"` // newest first
}
