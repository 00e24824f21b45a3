package model

import (
	"fmt"
	"strings"
	"time"
)

type ItemType string

const (
	ItemTypeText ItemType = "text"
	ItemTypeFile ItemType = "file"
)

func (t ItemType) IsValid() bool {
	return t == ItemTypeText || t == ItemTypeFile
}

// ItemPayload is the content of a shared item. It is either a TextPayload
// or a FilePayload; no other implementations exist.
type ItemPayload interface {
	Kind() ItemType
	fill(item *SharedItem)
}

type TextPayload struct {
	Content string
}

func (TextPayload) Kind() ItemType { return ItemTypeText }

func (p TextPayload) fill(item *SharedItem) {
	content := p.Content
	item.Content = &content
}

// FilePayload references a file stored elsewhere. FileURL is an opaque
// locator and is never dereferenced by the server.
type FilePayload struct {
	FileName    string
	FileURL     *string
	FileSize    *int64
	Description *string
}

func (FilePayload) Kind() ItemType { return ItemTypeFile }

func (p FilePayload) fill(item *SharedItem) {
	name := p.FileName
	item.FileName = &name
	item.FileURL = p.FileURL
	item.FileSize = p.FileSize
	item.Content = p.Description
}

// SharedItem is the stored row. Only the columns of its variant are set.
type SharedItem struct {
	ID        int64     `db:"id" json:"id"`
	SessionID int64     `db:"session_id" json:"sessionId"`
	Type      ItemType  `db:"type" json:"type"`
	Content   *string   `db:"content" json:"content"`
	FileURL   *string   `db:"file_url" json:"fileUrl"`
	FileName  *string   `db:"file_name" json:"fileName"`
	FileSize  *int64    `db:"file_size" json:"fileSize"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewSharedItem lays a payload out in row form. ID and CreatedAt are left
// for the store to assign.
func NewSharedItem(sessionID int64, payload ItemPayload) SharedItem {
	item := SharedItem{
		SessionID: sessionID,
		Type:      payload.Kind(),
	}
	payload.fill(&item)
	return item
}

// Payload recovers the variant. It returns nil for rows with an unknown type.
func (i *SharedItem) Payload() ItemPayload {
	switch i.Type {
	case ItemTypeText:
		return TextPayload{Content: deref(i.Content)}
	case ItemTypeFile:
		return FilePayload{
			FileName:    deref(i.FileName),
			FileURL:     i.FileURL,
			FileSize:    i.FileSize,
			Description: i.Content,
		}
	default:
		return nil
	}
}

type CreateItemParams struct {
	SessionID int64
	Payload   ItemPayload
}

// AddItemRequest is the request body for adding an item. Any sessionId in
// the body is ignored; the session comes from the code in the path.
type AddItemRequest struct {
	Type     string  `json:"type"`
	Content  *string `json:"content"`
	FileURL  *string `json:"fileUrl"`
	FileName *string `json:"fileName"`
	FileSize *int64  `json:"fileSize"`
}

// FieldError reports the first request field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the request shape and converts it into a payload.
func (r AddItemRequest) Validate() (ItemPayload, *FieldError) {
	if r.Type == "" {
		return nil, &FieldError{Field: "type", Message: "type is required"}
	}

	switch ItemType(r.Type) {
	case ItemTypeText:
		if r.Content == nil || strings.TrimSpace(*r.Content) == "" {
			return nil, &FieldError{Field: "content", Message: "content is required for text items"}
		}
		return TextPayload{Content: *r.Content}, nil

	case ItemTypeFile:
		if r.FileName == nil || strings.TrimSpace(*r.FileName) == "" {
			return nil, &FieldError{Field: "fileName", Message: "fileName is required for file items"}
		}
		if r.FileSize != nil && *r.FileSize < 0 {
			return nil, &FieldError{Field: "fileSize", Message: "fileSize must not be negative"}
		}
		return FilePayload{
			FileName:    *r.FileName,
			FileURL:     r.FileURL,
			FileSize:    r.FileSize,
			Description: r.Content,
		}, nil

	default:
		return nil, &FieldError{Field: "type", Message: "type must be one of: text, file"}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
