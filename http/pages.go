package http

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"obesityrisk/assessment"
	"obesityrisk/ml"
)

//go:embed templates/*.html
var templateFS embed.FS

// formField is a data dictionary entry plus the value to pre-fill.
type formField struct {
	ml.FieldSpec
	Value string
	Step  string
}

type pageData struct {
	Fields     []formField
	Assessment *assessment.Assessment
	Error      string
	ErrorField string
}

func parsePage() (*template.Template, error) {
	return template.New("assess.html").Funcs(template.FuncMap{
		"percent": func(v float64) string { return strconv.FormatFloat(v*100, 'f', 1, 64) + "%" },
		"num":     func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
	}).ParseFS(templateFS, "templates/assess.html")
}

var formDefaults = map[string]string{
	"Gender": "Female", "Age": "25", "Height": "1.70", "Weight": "70.0",
	"family_history": "yes", "FAVC": "yes", "FCVC": "2", "NCP": "3",
	"CAEC": "Sometimes", "CH2O": "2", "SCC": "no", "FAF": "1", "TUE": "1",
	"SMOKE": "no", "CALC": "no", "MTRANS": "Public_Transportation",
}

// buildFormFields offers only the category levels the loaded model was fitted
// on, so the form cannot submit a value the encoder rejects.
func (h *handlers) buildFormFields(values map[string]string) []formField {
	specs := ml.Fields()
	out := make([]formField, len(specs))
	for i, f := range specs {
		if fitted := h.model.Levels(f.Name); len(fitted) > 0 {
			f.Levels = fitted
		}
		v, ok := values[f.Name]
		if !ok {
			v = formDefaults[f.Name]
		}
		step := "1"
		if f.Kind == ml.KindFloat {
			step = "0.01"
		}
		out[i] = formField{FieldSpec: f, Value: v, Step: step}
	}
	return out
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, pageData{Fields: h.buildFormFields(nil)})
}

func (h *handlers) handleAssessForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderPage(w, http.StatusBadRequest, pageData{
			Fields: h.buildFormFields(nil),
			Error:  "The form could not be read.",
		})
		return
	}
	values := make(map[string]string, len(ml.Fields()))
	for _, f := range ml.Fields() {
		if v := r.PostForm.Get(f.Name); v != "" {
			values[f.Name] = v
		}
	}

	data := pageData{Fields: h.buildFormFields(values)}
	a, err := h.service.AssessForm(values)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("form assessment failed", append(requestFields(r), zap.Error(err))...)
			data.Error = "The assessment could not be completed."
		} else {
			data.Error = err.Error()
			data.ErrorField, _ = ml.FieldOf(err)
		}
		h.renderPage(w, status, data)
		return
	}
	data.Assessment = a
	h.renderPage(w, http.StatusOK, data)
}

func (h *handlers) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("render page", zap.Error(err))
	}
}
