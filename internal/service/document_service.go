package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/askbase/askbase/internal/filestore"
	"github.com/askbase/askbase/internal/model"
	"github.com/askbase/askbase/internal/repo"
	"github.com/askbase/askbase/internal/vectorstore"
)

type DocumentService struct {
	docs  *repo.DocumentRepo
	store vectorstore.Store
	files filestore.Store
}

func NewDocumentService(docs *repo.DocumentRepo, store vectorstore.Store, files filestore.Store) *DocumentService {
	return &DocumentService{docs: docs, store: store, files: files}
}

func (s *DocumentService) List(ctx context.Context, userID string, offset, limit int) ([]*model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.docs.ListByUser(ctx, userID, offset, limit)
}

// Delete removes a document and its chunk vectors. The vectors go
// first: if that fails the relational record stays, so the document
// remains listable and the delete can be retried.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.docs.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	filter := vectorstore.Filter{UserID: userID, DocumentID: doc.ID}
	if err := s.store.Delete(ctx, filter); err != nil {
		return fmt.Errorf("delete document vectors: %w", err)
	}
	if err := s.docs.Delete(ctx, userID, doc.ID); err != nil {
		return err
	}
	if s.files != nil {
		if key := FileKey(doc); key != "" {
			if err := s.files.Delete(ctx, key); err != nil {
				logutil.GetLogger(ctx).Warn("failed to delete stored file",
					zap.String("document_id", doc.ID), zap.Error(err))
			}
		}
	}
	return nil
}

// FileKey names the raw upload in the file store. Plain text ingestion
// stores nothing, so it has no key.
func FileKey(doc *model.Document) string {
	if doc.FileType == "" || doc.FileType == model.FileTypeText {
		return ""
	}
	return doc.ID + "." + doc.FileType
}
