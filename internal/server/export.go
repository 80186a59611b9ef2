package server

import (
	"context"
	"encoding/base64"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/utils"
)

// ExportExtraction renders a stored extraction as json, csv or xlsx. The
// file comes back base64 encoded in "content".
func (s *ExtractionServer) ExportExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	docType, err := constants.ParseDocumentType(utils.StructString(req, "document_type"))
	if err != nil {
		return nil, invalid(err.Error())
	}
	id, err := parseID(req, "id")
	if err != nil {
		return nil, err
	}
	format := export.FormatJSON
	if f := utils.StructString(req, "format"); f != "" {
		if format, err = export.ParseFormat(f); err != nil {
			return nil, err
		}
	}

	file, err := s.exporter.Export(ctx, userID, docType, id, format)
	if err != nil {
		common.LoggerFrom(ctx, s.logger).Error("export."+string(format)+".failed", "extraction_id", id, "error", err)
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"file_name":    file.Name,
		"content_type": file.ContentType,
		"content":      base64.StdEncoding.EncodeToString(file.Data),
	})
}
