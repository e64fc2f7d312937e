package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mycellarapp/cellar-server/internal/service"
)

func (s *Server) registerTransferRoutes() {
	register(s.api, huma.Operation{
		OperationID: "exportWines",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/wines",
		Summary:     "Export wines",
		Description: "Downloads active wines as semicolon-separated CSV",
		Tags:        []string{"Transfer"},
		Security:    bearerSecurity,
	}, s.handleExportWines)

	register(s.api, huma.Operation{
		OperationID: "exportExperienced",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/experienced",
		Summary:     "Export experienced wines",
		Description: "Downloads experienced wines as semicolon-separated CSV",
		Tags:        []string{"Transfer"},
		Security:    bearerSecurity,
	}, s.handleExportExperienced)

	register(s.api, huma.Operation{
		OperationID:  "importWines",
		Method:       http.MethodPost,
		Path:         "/api/v1/import",
		Summary:      "Import wines",
		Description:  "Adds every CSV row as a new wine. Rows that fail are reported by line.",
		Tags:         []string{"Transfer"},
		Security:     bearerSecurity,
		MaxBodyBytes: MaxUploadSize,
	}, s.handleImport)
}

// === DTOs ===

// ExportInput scopes an export.
type ExportInput struct {
	Cellar string `query:"cellar" doc:"Cellar ID, defaults to the active cellar"`
	All    bool   `query:"all" doc:"Export every cellar"`
}

// CSVOutput is a CSV download.
type CSVOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	CacheControl       string `header:"Cache-Control"`
	Body               []byte
}

// ImportInput carries the raw CSV upload.
type ImportInput struct {
	Cellar  string `query:"cellar" doc:"Cellar for rows without one, defaults to the active cellar"`
	RawBody []byte `contentType:"text/csv"`
}

// ImportOutput wraps the import result for Huma.
type ImportOutput struct {
	Body *service.ImportResult
}

// === Handlers ===

func csvOutput(filename string, body []byte) *CSVOutput {
	return &CSVOutput{
		ContentType:        "text/csv; charset=utf-8",
		ContentDisposition: `attachment; filename="` + filename + `"`,
		CacheControl:       CacheNoStore,
		Body:               body,
	}
}

func (s *Server) handleExportWines(ctx context.Context, input *ExportInput) (*CSVOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	name, err := s.services.Transfer.ExportWines(ctx, sess, service.ListOptions{CellarID: input.Cellar, AllCellars: input.All}, &buf)
	if err != nil {
		return nil, err
	}
	return csvOutput(name, buf.Bytes()), nil
}

func (s *Server) handleExportExperienced(ctx context.Context, input *ExportInput) (*CSVOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	name, err := s.services.Transfer.ExportExperienced(ctx, sess, service.ListOptions{CellarID: input.Cellar, AllCellars: input.All}, &buf)
	if err != nil {
		return nil, err
	}
	return csvOutput(name, buf.Bytes()), nil
}

func (s *Server) handleImport(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Transfer.Import(ctx, sess, bytes.NewReader(input.RawBody), input.Cellar)
	if err != nil {
		return nil, err
	}
	return &ImportOutput{Body: result}, nil
}
