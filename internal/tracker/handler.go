package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/babygrowth/internal/growth"
	"github.com/2beens/babygrowth/internal/i18n"
	"github.com/2beens/babygrowth/internal/telemetry/tracing"
	"github.com/2beens/babygrowth/internal/units"
	"github.com/2beens/babygrowth/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxFeedingDays = 90

// inputValue is a number typed in a display unit. Clients may send it as
// a JSON number or as the raw text of the input field ("3,5").
type inputValue string

func (v *inputValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = inputValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = inputValue(n.String())
	return nil
}

type BabyRequest struct {
	Name   *string `json:"name"`
	Gender *string `json:"gender"`
	// BirthDate is YYYY-MM-DD; an empty string clears it on update.
	BirthDate *string `json:"birthDate"`
}

type ObservationRequest struct {
	Date   *string     `json:"date"`
	Weight *inputValue `json:"weight"`
	Height *inputValue `json:"height"`
	Note   *string     `json:"note"`
}

type MilkRequest struct {
	Timestamp *string     `json:"timestamp"`
	Amount    *inputValue `json:"amount"`
	Note      *string     `json:"note"`
}

type SettingsRequest struct {
	WeightUnit *string `json:"weightUnit"`
	HeightUnit *string `json:"heightUnit"`
	Language   *string `json:"language"`
}

type BabiesResponse struct {
	Babies       []Baby `json:"babies"`
	ActiveBabyID string `json:"activeBabyId"`
}

type DeletedResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes adds every tracker route to r. Export routes get the
// exportMiddleware (rate limiting) on top of the router middleware.
func (h *Handler) RegisterRoutes(r *mux.Router, exportMiddleware ...mux.MiddlewareFunc) {
	r.HandleFunc("/babies", h.HandleListBabies).Methods("GET", "OPTIONS").Name("list-babies")
	r.HandleFunc("/babies", h.HandleAddBaby).Methods("POST", "OPTIONS").Name("new-baby")
	r.HandleFunc("/babies/{id}", h.HandleGetBaby).Methods("GET", "OPTIONS").Name("get-baby")
	r.HandleFunc("/babies/{id}", h.HandleUpdateBaby).Methods("PUT", "OPTIONS").Name("update-baby")
	r.HandleFunc("/babies/{id}", h.HandleDeleteBaby).Methods("DELETE", "OPTIONS").Name("delete-baby")
	r.HandleFunc("/babies/{id}/activate", h.HandleActivateBaby).Methods("POST", "OPTIONS").Name("activate-baby")

	r.HandleFunc("/babies/{id}/observations", h.HandleAddObservation).Methods("POST", "OPTIONS").Name("new-observation")
	r.HandleFunc("/babies/{id}/observations/{oid}", h.HandleUpdateObservation).Methods("PUT", "OPTIONS").Name("update-observation")
	r.HandleFunc("/babies/{id}/observations/{oid}", h.HandleDeleteObservation).Methods("DELETE", "OPTIONS").Name("delete-observation")

	r.HandleFunc("/babies/{id}/milk", h.HandleAddMilk).Methods("POST", "OPTIONS").Name("new-milk")
	r.HandleFunc("/babies/{id}/milk/{mid}", h.HandleUpdateMilk).Methods("PUT", "OPTIONS").Name("update-milk")
	r.HandleFunc("/babies/{id}/milk/{mid}", h.HandleDeleteMilk).Methods("DELETE", "OPTIONS").Name("delete-milk")

	r.HandleFunc("/babies/{id}/chart", h.HandleChart).Methods("GET", "OPTIONS").Name("chart")
	r.HandleFunc("/babies/{id}/chart.png", h.HandleChartPNG).Methods("GET", "OPTIONS").Name("chart-png")
	r.HandleFunc("/babies/{id}/summary", h.HandleSummary).Methods("GET", "OPTIONS").Name("summary")
	r.HandleFunc("/babies/{id}/milestones", h.HandleMilestones).Methods("GET", "OPTIONS").Name("milestones")
	r.HandleFunc("/babies/{id}/feeding", h.HandleFeeding).Methods("GET", "OPTIONS").Name("feeding")

	limited := func(hf http.HandlerFunc) http.Handler {
		var handler http.Handler = hf
		for i := len(exportMiddleware) - 1; i >= 0; i-- {
			handler = exportMiddleware[i].Middleware(handler)
		}
		return handler
	}
	r.Handle("/babies/{id}/export.csv", limited(h.HandleExportCSV)).Methods("GET", "OPTIONS").Name("export-csv")
	r.Handle("/babies/{id}/export.pdf", limited(h.HandleExportPDF)).Methods("GET", "OPTIONS").Name("export-pdf")
	r.Handle("/babies/{id}/feeding/export.csv", limited(h.HandleExportMilkCSV)).Methods("GET", "OPTIONS").Name("export-feeding-csv")

	r.HandleFunc("/settings", h.HandleGetSettings).Methods("GET", "OPTIONS").Name("get-settings")
	r.HandleFunc("/settings", h.HandleUpdateSettings).Methods("PUT", "OPTIONS").Name("update-settings")

	r.HandleFunc("/references", h.HandleReferences).Methods("GET", "OPTIONS").Name("references")
	r.HandleFunc("/references/{gender}/{metric}", h.HandleReferenceTable).Methods("GET", "OPTIONS").Name("reference-table")
}

// writeError maps service errors onto status codes. Only unexpected errors
// are logged.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrBabyNotFound):
		http.Error(w, "baby not found", http.StatusNotFound)
	case errors.Is(err, ErrObservationNotFound):
		http.Error(w, "observation not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, fmt.Sprintf("error, %s failed", op), http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Debugf("unmarshal json request [%T]: %s", v, err)
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) HandleListBabies(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.list_babies")
	defer span.End()

	state := h.service.State()
	pkg.WriteJSONOK(w, BabiesResponse{
		Babies:       state.Babies,
		ActiveBabyID: state.ActiveBabyID,
	})
}

func (h *Handler) HandleGetBaby(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.get_baby")
	defer span.End()

	baby, err := h.service.Baby(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "get baby", err)
		return
	}
	pkg.WriteJSONOK(w, baby)
}

func parseBirthDate(s *string) (*growth.Date, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	if strings.TrimSpace(*s) == "" {
		return nil, true, nil
	}
	d, err := growth.ParseDate(*s)
	if err != nil {
		return nil, false, fmt.Errorf("%w: birth date: %s", ErrInvalidInput, err)
	}
	return &d, false, nil
}

func (h *Handler) HandleAddBaby(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.add_baby")
	defer span.End()

	var req BabyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := BabyInput{}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Gender != nil {
		gender, err := growth.ParseGender(*req.Gender)
		if err != nil {
			http.Error(w, "error, invalid gender", http.StatusBadRequest)
			return
		}
		in.Gender = gender
	}
	birthDate, _, err := parseBirthDate(req.BirthDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in.BirthDate = birthDate

	added, err := h.service.AddBaby(ctx, in)
	if err != nil {
		writeError(w, "add baby", err)
		return
	}
	pkg.WriteJSON(w, added, http.StatusCreated)
}

func (h *Handler) HandleUpdateBaby(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.update_baby")
	defer span.End()

	var req BabyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := BabyPatch{Name: req.Name}
	if req.Gender != nil {
		gender, err := growth.ParseGender(*req.Gender)
		if err != nil {
			http.Error(w, "error, invalid gender", http.StatusBadRequest)
			return
		}
		patch.Gender = &gender
	}
	birthDate, clearBirth, err := parseBirthDate(req.BirthDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	patch.BirthDate = birthDate
	patch.ClearBirthDate = clearBirth

	updated, err := h.service.UpdateBaby(ctx, mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, "update baby", err)
		return
	}
	pkg.WriteJSONOK(w, updated)
}

func (h *Handler) HandleDeleteBaby(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.delete_baby")
	defer span.End()

	id := mux.Vars(r)["id"]
	baby, err := h.service.Baby(id)
	if err != nil {
		writeError(w, "delete baby", err)
		return
	}
	if err := h.service.DeleteBaby(ctx, baby.ID); err != nil {
		writeError(w, "delete baby", err)
		return
	}

	log.Debugf("baby deleted: [%s] %s", baby.ID, baby.Name)
	pkg.WriteJSONOK(w, DeletedResponse{DeletedID: baby.ID})
}

func (h *Handler) HandleActivateBaby(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.activate_baby")
	defer span.End()

	if err := h.service.SetActiveBaby(ctx, mux.Vars(r)["id"]); err != nil {
		writeError(w, "activate baby", err)
		return
	}
	state := h.service.State()
	pkg.WriteJSONOK(w, BabiesResponse{
		Babies:       state.Babies,
		ActiveBabyID: state.ActiveBabyID,
	})
}

func (v *inputValue) text() *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// observationForm parses the date at the boundary. Weight and height stay
// as typed: the service converts them under the units in effect when the
// change is applied.
func observationForm(req ObservationRequest) (ObservationForm, error) {
	form := ObservationForm{
		Weight: req.Weight.text(),
		Height: req.Height.text(),
		Note:   req.Note,
	}
	if req.Date != nil {
		d, err := growth.ParseDate(*req.Date)
		if err != nil {
			return ObservationForm{}, fmt.Errorf("%w: date: %s", ErrInvalidInput, err)
		}
		form.Date = &d
	}
	return form, nil
}

func (h *Handler) HandleAddObservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.add_observation")
	defer span.End()

	var req ObservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	form, err := observationForm(req)
	if err != nil {
		writeError(w, "add observation", err)
		return
	}

	added, err := h.service.AddObservationForm(ctx, mux.Vars(r)["id"], form)
	if err != nil {
		writeError(w, "add observation", err)
		return
	}
	pkg.WriteJSON(w, added, http.StatusCreated)
}

func (h *Handler) HandleUpdateObservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.update_observation")
	defer span.End()

	var req ObservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	form, err := observationForm(req)
	if err != nil {
		writeError(w, "update observation", err)
		return
	}

	vars := mux.Vars(r)
	updated, err := h.service.UpdateObservationForm(ctx, vars["id"], vars["oid"], form)
	if err != nil {
		writeError(w, "update observation", err)
		return
	}
	pkg.WriteJSONOK(w, updated)
}

func (h *Handler) HandleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.delete_observation")
	defer span.End()

	vars := mux.Vars(r)
	if err := h.service.DeleteObservation(ctx, vars["id"], vars["oid"]); err != nil {
		writeError(w, "delete observation", err)
		return
	}
	pkg.WriteJSONOK(w, DeletedResponse{DeletedID: vars["oid"]})
}

func milkPatch(req MilkRequest) (MilkPatch, error) {
	patch := MilkPatch{Note: req.Note}
	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.Timestamp))
		if err != nil {
			return MilkPatch{}, fmt.Errorf("%w: timestamp: %s", ErrInvalidInput, err)
		}
		patch.Timestamp = &ts
	}
	if req.Amount != nil {
		// milk volumes are always ml
		ml, err := units.ParseNumber(string(*req.Amount))
		if err != nil {
			return MilkPatch{}, fmt.Errorf("%w: amount: %s", ErrInvalidInput, err)
		}
		patch.AmountMl = &ml
	}
	return patch, nil
}

func (h *Handler) HandleAddMilk(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.add_milk")
	defer span.End()

	var req MilkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := milkPatch(req)
	if err != nil {
		writeError(w, "add milk", err)
		return
	}

	// a missing timestamp is filled in by the service clock
	var in MilkInput
	if patch.Timestamp != nil {
		in.Timestamp = *patch.Timestamp
	}
	if patch.AmountMl != nil {
		in.AmountMl = *patch.AmountMl
	}
	if patch.Note != nil {
		in.Note = *patch.Note
	}

	added, err := h.service.AddMilkObservation(ctx, mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, "add milk", err)
		return
	}
	pkg.WriteJSON(w, added, http.StatusCreated)
}

func (h *Handler) HandleUpdateMilk(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.update_milk")
	defer span.End()

	var req MilkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := milkPatch(req)
	if err != nil {
		writeError(w, "update milk", err)
		return
	}

	vars := mux.Vars(r)
	updated, err := h.service.UpdateMilkObservation(ctx, vars["id"], vars["mid"], patch)
	if err != nil {
		writeError(w, "update milk", err)
		return
	}
	pkg.WriteJSONOK(w, updated)
}

func (h *Handler) HandleDeleteMilk(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.delete_milk")
	defer span.End()

	vars := mux.Vars(r)
	if err := h.service.DeleteMilkObservation(ctx, vars["id"], vars["mid"]); err != nil {
		writeError(w, "delete milk", err)
		return
	}
	pkg.WriteJSONOK(w, DeletedResponse{DeletedID: vars["mid"]})
}

// HandleChart returns one metric series, or both on the shared axis when
// no metric is given.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.chart")
	defer span.End()

	id := mux.Vars(r)["id"]
	metricParam := r.URL.Query().Get("metric")
	if metricParam == "" {
		chart, err := h.service.CombinedChart(ctx, id)
		if err != nil {
			writeError(w, "chart", err)
			return
		}
		pkg.WriteJSONOK(w, chart)
		return
	}

	metric, err := growth.ParseMetric(metricParam)
	if err != nil {
		http.Error(w, "error, invalid metric", http.StatusBadRequest)
		return
	}
	chart, err := h.service.Chart(ctx, id, metric)
	if err != nil {
		writeError(w, "chart", err)
		return
	}
	pkg.WriteJSONOK(w, chart)
}

func (h *Handler) HandleChartPNG(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.chart_png")
	defer span.End()

	metric := growth.Weight
	if metricParam := r.URL.Query().Get("metric"); metricParam != "" {
		var err error
		if metric, err = growth.ParseMetric(metricParam); err != nil {
			http.Error(w, "error, invalid metric", http.StatusBadRequest)
			return
		}
	}

	img, err := h.service.ChartPNG(ctx, mux.Vars(r)["id"], metric)
	if err != nil {
		writeError(w, "chart png", err)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.PNG, img)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.summary")
	defer span.End()

	summary, err := h.service.Summary(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "summary", err)
		return
	}
	pkg.WriteJSONOK(w, summary)
}

func (h *Handler) HandleMilestones(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.milestones")
	defer span.End()

	view, err := h.service.Milestones(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "milestones", err)
		return
	}
	pkg.WriteJSONOK(w, view)
}

func (h *Handler) HandleFeeding(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.feeding")
	defer span.End()

	days := 0
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		var err error
		days, err = strconv.Atoi(daysParam)
		if err != nil || days <= 0 || days > maxFeedingDays {
			http.Error(w, "error, invalid days", http.StatusBadRequest)
			return
		}
	}

	view, err := h.service.Feeding(mux.Vars(r)["id"], days)
	if err != nil {
		writeError(w, "feeding", err)
		return
	}
	pkg.WriteJSONOK(w, view)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func attachmentName(babyName, suffix, ext string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(babyName, "_"), "_")
	if name == "" {
		name = "baby"
	}
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(name), suffix, ext)
}

func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.export_csv")
	defer span.End()

	var buf bytes.Buffer
	name, err := h.service.ExportCSV(ctx, mux.Vars(r)["id"], &buf)
	if err != nil {
		writeError(w, "export csv", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, attachmentName(name, "growth", "csv")))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.CSV, buf.Bytes())
}

func (h *Handler) HandleExportMilkCSV(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.export_milk_csv")
	defer span.End()

	var buf bytes.Buffer
	name, err := h.service.ExportMilkCSV(ctx, mux.Vars(r)["id"], &buf)
	if err != nil {
		writeError(w, "export milk csv", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, attachmentName(name, "feeding", "csv")))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.CSV, buf.Bytes())
}

func (h *Handler) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.export_pdf")
	defer span.End()

	var buf bytes.Buffer
	name, err := h.service.ExportPDF(ctx, mux.Vars(r)["id"], &buf)
	if err != nil {
		writeError(w, "export pdf", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, attachmentName(name, "report", "pdf")))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.PDF, buf.Bytes())
}

func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.get_settings")
	defer span.End()

	pkg.WriteJSONOK(w, h.service.Settings())
}

func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.update_settings")
	defer span.End()

	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var patch SettingsPatch
	if req.WeightUnit != nil {
		u, err := units.ParseWeightUnit(*req.WeightUnit)
		if err != nil {
			http.Error(w, "error, invalid weight unit", http.StatusBadRequest)
			return
		}
		patch.WeightUnit = &u
	}
	if req.HeightUnit != nil {
		u, err := units.ParseHeightUnit(*req.HeightUnit)
		if err != nil {
			http.Error(w, "error, invalid height unit", http.StatusBadRequest)
			return
		}
		patch.HeightUnit = &u
	}
	if req.Language != nil {
		lang, err := i18n.ParseLanguage(*req.Language)
		if err != nil {
			http.Error(w, "error, unsupported language", http.StatusBadRequest)
			return
		}
		patch.Language = &lang
	}

	settings, err := h.service.UpdateSettings(ctx, patch)
	if err != nil {
		writeError(w, "update settings", err)
		return
	}
	pkg.WriteJSONOK(w, settings)
}

func (h *Handler) HandleReferences(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.references")
	defer span.End()

	pkg.WriteJSONOK(w, h.service.References())
}

func (h *Handler) HandleReferenceTable(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.tracker.reference_table")
	defer span.End()

	vars := mux.Vars(r)
	gender, err := growth.ParseGender(vars["gender"])
	if err != nil {
		http.Error(w, "error, invalid gender", http.StatusBadRequest)
		return
	}
	metric, err := growth.ParseMetric(vars["metric"])
	if err != nil {
		http.Error(w, "error, invalid metric", http.StatusBadRequest)
		return
	}

	table, ok := h.service.References().Table(gender, metric)
	if !ok {
		http.Error(w, "reference table not found", http.StatusNotFound)
		return
	}
	pkg.WriteJSONOK(w, table)
}
