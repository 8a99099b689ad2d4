package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Spok95/groom-salon/internal/domain/catalog"
	"github.com/Spok95/groom-salon/internal/domain/pets"
	"github.com/Spok95/groom-salon/internal/domain/reservations"
	"github.com/Spok95/groom-salon/internal/domain/staff"
	"github.com/Spok95/groom-salon/internal/domain/subscriptions"
	"github.com/Spok95/groom-salon/internal/report"
)

// API — тонкие JSON-обработчики поверх доменных пакетов.
// Сотрудник передаётся заголовком X-Actor-ID (аутентификация —
// забота внешнего слоя, нам нужен только id для аудита).
type API struct {
	coord   *reservations.Coordinator
	ledger  *subscriptions.Ledger
	pets    *pets.Repo
	catalog *catalog.Repo
	staff   *staff.Repo
	reports *report.Repo
	log     *slog.Logger
}

func NewAPI(coord *reservations.Coordinator, ledger *subscriptions.Ledger,
	petsRepo *pets.Repo, catalogRepo *catalog.Repo, staffRepo *staff.Repo,
	reportRepo *report.Repo, log *slog.Logger) *API {
	return &API{
		coord: coord, ledger: ledger, pets: petsRepo,
		catalog: catalogRepo, staff: staffRepo, reports: reportRepo, log: log,
	}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /pets", a.listPets)
	mux.HandleFunc("POST /pets", a.createPet)
	mux.HandleFunc("GET /services", a.listServices)
	mux.HandleFunc("POST /services", a.createService)
	mux.HandleFunc("POST /subscriptions", a.createSubscription)
	mux.HandleFunc("POST /subscriptions/{id}/cancel", a.cancelSubscription)
	mux.HandleFunc("GET /subscriptions/{id}/usage", a.getUsage)
	mux.HandleFunc("GET /subscriptions/{id}/report", a.usageReport)
	mux.HandleFunc("POST /reservations", a.createReservation)
	mux.HandleFunc("POST /reservations/{id}/cancel", a.cancelReservation)
	mux.HandleFunc("POST /reservations/{id}/complete", a.completeReservation)
}

// actor достаёт и проверяет сотрудника из X-Actor-ID.
func (a *API) actor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil || id <= 0 {
		a.writeError(w, http.StatusUnauthorized, "Не указан сотрудник (X-Actor-ID)")
		return 0, false
	}
	m, err := a.staff.Get(r.Context(), id)
	if err != nil || !m.Active {
		a.writeError(w, http.StatusForbidden, "Сотрудник не найден или отключён")
		return 0, false
	}
	return id, true
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("write response failed", "err", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, code int, reason string) {
	a.writeJSON(w, code, map[string]string{"error": reason})
}

// fail переводит доменную ошибку в HTTP-статус и текст для клиента.
func (a *API) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, subscriptions.ErrNotFound):
		a.writeError(w, http.StatusNotFound, subscriptions.Reason(err))
	case errors.Is(err, reservations.ErrNotFound):
		a.writeError(w, http.StatusNotFound, "Бронь не найдена")
	case errors.Is(err, pets.ErrNotFound):
		a.writeError(w, http.StatusNotFound, "Питомец не найден")
	case errors.Is(err, subscriptions.ErrInvalidArgument):
		a.writeError(w, http.StatusBadRequest, subscriptions.Reason(err))
	case errors.Is(err, subscriptions.ErrInsufficientQuota),
		errors.Is(err, subscriptions.ErrExpired),
		errors.Is(err, subscriptions.ErrInvalidState),
		errors.Is(err, subscriptions.ErrCannotCancelConfirmed):
		a.writeError(w, http.StatusConflict, subscriptions.Reason(err))
	case errors.Is(err, reservations.ErrInvalidStatus):
		a.writeError(w, http.StatusConflict, "Бронь уже в конечном статусе")
	default:
		a.log.Error("request failed", "err", err)
		a.writeError(w, http.StatusInternalServerError, subscriptions.Reason(err))
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

/* Pets */

func (a *API) listPets(w http.ResponseWriter, r *http.Request) {
	list, err := a.pets.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

func (a *API) createPet(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.actor(w, r); !ok {
		return
	}
	var in struct {
		Name       string `json:"name"`
		Breed      string `json:"breed"`
		OwnerName  string `json:"owner_name"`
		OwnerPhone string `json:"owner_phone"`
		Notes      string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		a.writeError(w, http.StatusBadRequest, "Некорректный запрос")
		return
	}
	p := &pets.Pet{Name: in.Name, Breed: in.Breed, OwnerName: in.OwnerName, OwnerPhone: in.OwnerPhone, Notes: in.Notes}
	id, err := a.pets.Create(r.Context(), p)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

/* Services */

func (a *API) listServices(w http.ResponseWriter, r *http.Request) {
	list, err := a.catalog.List(r.Context(), true)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

func (a *API) createService(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.actor(w, r); !ok {
		return
	}
	var in struct {
		Name  string  `json:"name"`
		Tag   string  `json:"tag"`
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		a.writeError(w, http.StatusBadRequest, "Некорректный запрос")
		return
	}
	tag := catalog.ServiceTag(in.Tag)
	if tag != catalog.TagBath && tag != catalog.TagGroom {
		a.writeError(w, http.StatusBadRequest, "Тег услуги должен быть bath или groom")
		return
	}
	s, err := a.catalog.Create(r.Context(), in.Name, tag, in.Price)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, s)
}

/* Subscriptions */

func (a *API) createSubscription(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	var in struct {
		PetID     int64  `json:"pet_id"`
		Limit     int    `json:"limit"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный запрос")
		return
	}
	start, err1 := time.Parse("2006-01-02", in.StartDate)
	end, err2 := time.Parse("2006-01-02", in.EndDate)
	if err1 != nil || err2 != nil {
		a.writeError(w, http.StatusBadRequest, "Даты в формате ГГГГ-ММ-ДД")
		return
	}
	s, err := a.ledger.CreateSubscription(r.Context(), actorID, in.PetID, in.Limit, start, end)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, s)
}

func (a *API) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный id")
		return
	}
	if err := a.ledger.CancelSubscription(r.Context(), actorID, id); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getUsage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный id")
		return
	}
	u, err := a.ledger.GetUsage(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"used":       u.Used,
		"remaining":  u.Remaining,
		"start_date": u.StartDate.Format("2006-01-02"),
		"end_date":   u.EndDate.Format("2006-01-02"),
		"status":     u.Status,
	})
}

func (a *API) usageReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный id")
		return
	}
	u, err := a.ledger.GetUsage(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	rows, err := a.reports.Rows(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	f, err := report.BuildUsageXLSX(id, u, rows)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="usage_`+strconv.FormatInt(id, 10)+`.xlsx"`)
	if err := f.Write(w); err != nil {
		a.log.Error("write report failed", "err", err)
	}
}

/* Reservations */

func (a *API) createReservation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	var in struct {
		PetID          int64     `json:"pet_id"`
		ServiceIDs     []int64   `json:"service_ids"`
		StartsAt       time.Time `json:"starts_at"`
		SubscriptionID *int64    `json:"subscription_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный запрос")
		return
	}
	res, err := a.coord.Create(r.Context(), actorID, reservations.CreateInput{
		PetID:          in.PetID,
		ServiceIDs:     in.ServiceIDs,
		StartsAt:       in.StartsAt,
		SubscriptionID: in.SubscriptionID,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	out := map[string]any{"id": res.ID, "status": res.Status}
	if res.LinkID != nil {
		out["link_id"] = *res.LinkID
	}
	a.writeJSON(w, http.StatusCreated, out)
}

func (a *API) cancelReservation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный id")
		return
	}
	if err := a.coord.Cancel(r.Context(), actorID, id); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) completeReservation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Некорректный id")
		return
	}
	if err := a.coord.Complete(r.Context(), actorID, id); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
