package server

import (
	_ "embed"
	"net/http"
)

//go:embed assets/report.js
var reportScript []byte

func (s *ReportServer) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(reportScript)
}
