package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/gate"
	"github.com/conneroisu/reportsmith/internal/generate"
	"github.com/conneroisu/reportsmith/internal/renderer"
	"github.com/conneroisu/reportsmith/internal/types"
	"github.com/conneroisu/reportsmith/internal/validation"
	"github.com/conneroisu/reportsmith/internal/version"
)

// uploadField is the multipart field carrying the template file.
const uploadField = "template"

const defaultMaxBody = 20 << 20

var namePolicy = bluemonday.StrictPolicy()

// ReportLink is one entry of the report list.
type ReportLink struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ScanResponse is the body of POST /api/templates/scan.
type ScanResponse struct {
	Accepted   bool                `json:"accepted"`
	Report     []types.ReportEntry `json:"report"`
	Structural types.FindingList   `json:"structural"`
	Lexical    types.FindingList   `json:"lexical"`
	ParseError string              `json:"parse_error,omitempty"`
}

func (s *ReportServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.config.Environment,
		"version":     version.Get().Short(),
		"templates":   s.engine.Registry().Count(),
		"clients":     s.hub.count(),
	})
}

func (s *ReportServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "Not found"})
}

func (s *ReportServer) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	reports := make([]ReportLink, 0, len(records))
	for _, record := range records {
		reports = append(reports, ReportLink{
			Name:  record.Name,
			Title: renderer.HumanizeName(record.Name),
			URL:   "/api/reports/render/" + record.Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"reports": reports,
	})
}

// handleRenderSession renders with data fetched for the session in the
// path. HTML responses are always documents, error documents included.
func (s *ReportServer) handleRenderSession(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("template")
	style := r.PathValue("style")
	session := r.PathValue("session")

	doc, data, err := s.engine.RenderSession(r.Context(), name, style, session)
	if r.URL.Query().Get("format") == "json" {
		s.writeRenderJSON(w, r, doc, data, err)
		return
	}
	writeHTML(w, doc)
}

// handleRenderPayload renders with the JSON request body as data.
func (s *ReportServer) handleRenderPayload(w http.ResponseWriter, r *http.Request) {
	var data interface{}
	if err := s.decodeJSON(w, r, &data); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.engine.RenderResult(r.Context(), types.RenderContext{
		TemplateName: r.PathValue("template"),
		StyleID:      r.PathValue("style"),
		Data:         data,
	})
	if r.URL.Query().Get("format") == "json" {
		s.writeRenderJSON(w, r, doc, data, err)
		return
	}
	writeHTML(w, doc)
}

func (s *ReportServer) writeRenderJSON(w http.ResponseWriter, r *http.Request, doc string, data interface{}, err error) {
	body := map[string]interface{}{
		"success": err == nil,
		"html":    doc,
		"data":    data,
	}
	status := http.StatusOK
	if err != nil {
		status = errors.StatusOf(err)
		body["error"] = s.publicMessage(err, status)
		body["request_id"] = RequestID(r.Context())
	}
	writeJSON(w, status, body)
}

// handleUpload admits a multipart .jsx upload. The optional "name" field
// overrides the name derived from the file name.
func (s *ReportServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody())
	if err := r.ParseMultipartForm(s.maxBody()); err != nil {
		s.writeError(w, r, errors.NewValidationError("ERR_INVALID_UPLOAD", "invalid multipart upload: "+err.Error()))
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.writeError(w, r, errors.NewValidationError("ERR_INVALID_UPLOAD", "missing \""+uploadField+"\" file field"))
		return
	}
	defer file.Close()

	filename, err := checkName(header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validation.ValidateFileExtension(filename, []string{validation.TemplateExtension}); err != nil {
		s.writeError(w, r, err)
		return
	}

	name, err := checkName(r.FormValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if name == "" {
		if name, err = validation.TemplateNameFromFile(filename); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	source, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, errors.WrapIO(err, "reading upload"))
		return
	}

	record, err := s.engine.Admit(r.Context(), name, string(source))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"template": record,
	})
}

// handleScan runs both scanners over a JSON {"source": ...} body or a raw
// text body without storing anything.
func (s *ReportServer) handleScan(w http.ResponseWriter, r *http.Request) {
	var source string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Source string `json:"source"`
		}
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		source = req.Source
	} else {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody()))
		if err != nil {
			s.writeError(w, r, errors.NewValidationError("ERR_INVALID_BODY", "reading body: "+err.Error()))
			return
		}
		source = string(raw)
	}

	decision := s.engine.Scan(r.Context(), source)
	resp := ScanResponse{
		Accepted:   decision.Accepted(),
		Report:     decision.Report(s.engine.ReportLimit()),
		Structural: decision.Structural,
		Lexical:    decision.Lexical,
	}
	if decision.ParseErr != nil {
		resp.ParseError = decision.ParseErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *ReportServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generate.Request
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name, err := checkName(req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Name = name
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, r, errors.NewValidationError("ERR_EMPTY_PROMPT", "prompt is required"))
		return
	}

	record, err := s.engine.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"template": record,
	})
}

func (s *ReportServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.engine.Delete(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "name": name})
}

func (s *ReportServer) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	name, err := checkName(req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.engine.Rename(r.PathValue("name"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"template": record,
	})
}

func (s *ReportServer) maxBody() int64 {
	if s.config.MaxUploadBytes > 0 {
		return s.config.MaxUploadBytes
	}
	return defaultMaxBody
}

func (s *ReportServer) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody()))
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError("ERR_INVALID_BODY", "invalid JSON body: "+err.Error())
	}
	return nil
}

// writeError maps err to its status. Rejections carry their report.
func (s *ReportServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := errors.StatusOf(err)

	body := map[string]interface{}{
		"success":    false,
		"error":      s.publicMessage(err, status),
		"request_id": RequestID(ctx),
	}
	var re *errors.ReportError
	if errors.As(err, &re) && re.Code != "" {
		body["code"] = re.Code
	}
	if errors.IsScanRejection(err) {
		body["findings"] = gate.ReportOf(err)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, err, "Request failed", "request_id", RequestID(ctx), "path", r.URL.Path)
	} else {
		s.logger.Debug(ctx, "Request refused", "request_id", RequestID(ctx), "status", status, "error", err.Error())
	}
	writeJSON(w, status, body)
}

// publicMessage hides internal failure detail in production.
func (s *ReportServer) publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError && s.config.Environment == "production" &&
		!errors.IsExternalService(err) {
		return "Internal server error"
	}
	return errors.Message(err)
}

// checkName trims a caller-supplied template or file name and refuses it
// if it carries anything the strict markup policy would rewrite.
func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if namePolicy.Sanitize(name) != name {
		return "", errors.NewValidationError(errors.ErrCodeInvalidName, "name must not contain markup or HTML special characters")
	}
	return name, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}
