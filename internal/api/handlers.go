package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aquere/libros-iva/internal/dateutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/merger"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/processor"
	"aquere/libros-iva/internal/registry"

	"github.com/go-chi/chi/v5"
)

// statusFor maps an error to an HTTP status: bad input 400, unknown client 404,
// conflicts 409, remote store failures 502.
func statusFor(err error) int {
	var dup *ledgererror.DuplicateMonthError
	switch {
	case errors.As(err, &dup), errors.Is(err, ledgererror.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case ledgererror.IsInputError(err), errors.Is(err, registry.ErrDuplicate),
		errors.Is(err, registry.ErrInvalidTaxpayerID), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case ledgererror.IsRemote(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed", logging.F("path", r.URL.Path))
	} else {
		s.logger.WithError(err).Warn("Request rejected", logging.F("path", r.URL.Path))
	}
	writeError(w, status, err.Error())
}

// readUpload returns the name and content of the "file" form field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		return "", nil, badRequest("invalid upload: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, badRequest("missing 'file' field")
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, badRequest("failed to read upload: %v", err)
	}
	return header.Filename, data, nil
}

// formValues reads a JSON object or form fields into a flat map.
func formValues(r *http.Request) (map[string]string, error) {
	out := make(map[string]string)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var raw map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, badRequest("invalid JSON body: %v", err)
		}
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				out[k] = val
			case nil:
			default:
				out[k] = fmt.Sprint(val)
			}
		}
		return out, nil
	}
	parse := r.ParseForm
	if ct == "multipart/form-data" {
		parse = func() error { return r.ParseMultipartForm(1 << 20) }
	}
	if err := parse(); err != nil {
		return nil, badRequest("invalid form: %v", err)
	}
	for k := range r.Form {
		out[k] = r.Form.Get(k)
	}
	return out, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.proc.Health()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            h.Status,
		"drive_connected":   h.SessionValid,
		"clients_available": h.ClientsLoaded,
	})
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients := s.proc.Clients()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"clients": clients,
	})
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := values["client_name"]
	if name == "" {
		name = values["name"]
	}
	if strings.TrimSpace(name) == "" {
		s.fail(w, r, badRequest("client name is required"))
		return
	}
	c, err := s.proc.CreateClient(r.Context(), values["cuit"], name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Cliente '%s' creado exitosamente", c.Name),
		"client":  c,
	})
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	values, err := formValues(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	oldID := chi.URLParam(r, "cuit")
	if oldID == "" {
		oldID = values["old_cuit"]
	}
	if oldID == "" {
		s.fail(w, r, badRequest("current CUIT is required"))
		return
	}
	c, err := s.proc.UpdateClient(r.Context(), oldID, values["new_name"], values["new_cuit"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Cliente actualizado exitosamente",
		"client":  c,
	})
}

func (s *Server) handleDetectMonth(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	period, err := s.proc.DetectMonth(name, data)
	s.observeUpload("detect-month", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"month":      int(period.Month),
		"year":       period.Year,
		"month_name": period.SheetName(),
	})
}

func (s *Server) handleAutoDetect(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.proc.AutoDetect(name, data)
	s.observeUpload("auto-detect", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var client interface{}
	if d.ClientFound {
		client = d.Client
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"cuit":         d.TaxpayerID,
		"client":       client,
		"client_found": d.ClientFound,
		"tipo":         string(d.Type),
		"month":        int(d.Period.Month),
		"year":         d.Period.Year,
		"month_name":   d.Period.SheetName(),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.proc.Preview(name, data, models.PreviewRowLimit)
	s.observeUpload("preview", err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"preview":      records(p.Ledger),
		"columns":      p.Ledger.Columns,
		"total_rows":   p.TotalRows,
		"columns_kept": p.ColumnsKept,
		"month":        int(p.Period.Month),
		"year":         p.Period.Year,
		"month_name":   p.Period.SheetName(),
	})
}

// records renders rows as column → value objects, totals last.
func records(ledger *models.CleanedLedger) []map[string]interface{} {
	rows := ledger.AllRows()
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]interface{}, len(ledger.Columns))
		for i, col := range ledger.Columns {
			if i >= len(row) {
				rec[col] = ""
				continue
			}
			if row[i].IsNumber {
				rec[col] = row[i].Number.InexactFloat64()
			} else {
				rec[col] = row[i].Text
			}
		}
		out = append(out, rec)
	}
	return out
}

func parseProcessForm(r *http.Request) (processor.ProcessRequest, error) {
	var req processor.ProcessRequest
	req.Client = strings.TrimSpace(r.FormValue("client"))
	if req.Client == "" {
		return req, badRequest("client is required")
	}
	t, err := models.ParseLedgerType(r.FormValue("tipo"))
	if err != nil {
		return req, badRequest("%v", err)
	}
	req.Type = t

	if v := r.FormValue("year"); v != "" {
		if req.Year, err = strconv.Atoi(v); err != nil {
			return req, badRequest("invalid year '%s'", v)
		}
	}
	if v := r.FormValue("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return req, badRequest("invalid month '%s'", v)
		}
		req.Month = time.Month(m)
	} else if v := r.FormValue("month_name"); v != "" {
		m, ok := dateutils.MonthFromName(v)
		if !ok {
			return req, badRequest("invalid month name '%s'", v)
		}
		req.Month = m
	}
	if v := r.FormValue("create_if_not_exists"); v != "" {
		if req.ConfirmCreate, err = strconv.ParseBool(v); err != nil {
			return req, badRequest("invalid create_if_not_exists '%s'", v)
		}
	}
	return req, nil
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := parseProcessForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req.FileName, req.Data = name, data

	res, err := s.proc.Process(r.Context(), req)
	s.observeUpload("process", err)
	if errors.Is(err, ledgererror.ErrConfirmationRequired) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":            false,
			"needs_confirmation": true,
			"message":            res.Message,
			"file_name":          res.FileName,
		})
		return
	}
	if err != nil {
		if res.Status == merger.StatusRejected {
			writeError(w, http.StatusConflict, res.Message)
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        res.Message,
		"rows_processed": res.RowsProcessed,
		"client":         req.Client,
		"tipo":           string(req.Type),
		"year":           res.Year,
		"month":          res.SheetName,
		"file_name":      res.FileName,
		"created":        res.Created,
		"merge_id":       res.ID,
	})
}
