package remote

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind names the remote write a queued payload replays.
type Kind string

const (
	KindDocument         Kind = "document"
	KindPage             Kind = "page"
	KindChunk            Kind = "chunk"
	KindNode             Kind = "node"
	KindEdge             Kind = "edge"
	KindAnnotation       Kind = "annotation"
	KindConversation     Kind = "conversation"
	KindMessage          Kind = "message"
	KindVocabulary       Kind = "vocabulary"
	KindSettings         Kind = "settings"
	KindDocumentDelete   Kind = "document_delete"
	KindVocabularyDelete Kind = "vocabulary_delete"
)

// DeletePayload is the queued form of a delete.
type DeletePayload struct {
	ID string `json:"id"`
}

// Apply decodes payload as the row for kind and performs the write.
// Undecodable payloads and unknown kinds wrap ErrInvalidPayload.
func Apply(ctx context.Context, gw Gateway, kind Kind, payload json.RawMessage) error {
	switch kind {
	case KindDocument:
		return applyRow(ctx, payload, gw.UpsertDocument)
	case KindPage:
		return applyRow(ctx, payload, gw.UpsertPage)
	case KindChunk:
		return applyRow(ctx, payload, gw.UpsertChunk)
	case KindNode:
		return applyRow(ctx, payload, gw.UpsertNode)
	case KindEdge:
		return applyRow(ctx, payload, gw.UpsertEdge)
	case KindAnnotation:
		return applyRow(ctx, payload, gw.UpsertAnnotation)
	case KindConversation:
		return applyRow(ctx, payload, gw.UpsertConversation)
	case KindMessage:
		return applyRow(ctx, payload, gw.InsertMessage)
	case KindVocabulary:
		return applyRow(ctx, payload, gw.UpsertVocabulary)
	case KindSettings:
		return applyRow(ctx, payload, gw.UpsertSettings)
	case KindDocumentDelete:
		return applyRow(ctx, payload, func(ctx context.Context, p DeletePayload) error {
			if p.ID == "" {
				return fmt.Errorf("%w: delete without id", ErrInvalidPayload)
			}
			return gw.DeleteDocument(ctx, p.ID)
		})
	case KindVocabularyDelete:
		return applyRow(ctx, payload, func(ctx context.Context, p DeletePayload) error {
			if p.ID == "" {
				return fmt.Errorf("%w: delete without id", ErrInvalidPayload)
			}
			return gw.DeleteVocabulary(ctx, p.ID)
		})
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, kind)
	}
}

func applyRow[T any](ctx context.Context, payload json.RawMessage, write func(context.Context, T) error) error {
	var row T
	if err := json.Unmarshal(payload, &row); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return write(ctx, row)
}
