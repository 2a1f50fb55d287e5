package nativecookie

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

const (
	wireDateTime = "2006-01-02 15:04"
	wireDate     = "2006-01-02"
)

var featureResources = map[accounts.Feature]string{
	accounts.FeatureTimetable:  "emploidutemps",
	accounts.FeatureGrades:     "notes",
	accounts.FeatureHomework:   "cahierdetexte",
	accounts.FeatureSchoolLife: "viescolaire",
}

var expiredCodes = []int{codeTokenInvalid, codeTokenExpired}

// Fetch runs one canonical request against the student resource matching the feature.
func (a *Adapter) Fetch(ctx context.Context, session *sessions.Session, req provider.Request) provider.Response {
	resource, ok := featureResources[req.Feature]
	if !ok {
		return provider.Failed(provider.StatusNotFound, errors.Errorf("feature %q not served", req.Feature))
	}

	payload := map[string]any{}
	var from, to time.Time
	if provider.DateBounded(req.Feature) {
		var err error
		if from, to, err = req.Params.DateRange(a.cfg.Now().In(a.cfg.Location)); err != nil {
			return provider.Failed(provider.StatusNotFound, err)
		}
	}
	if req.Feature == accounts.FeatureTimetable {
		payload["dateDebut"] = from.Format(wireDate)
		payload["dateFin"] = to.Format(wireDate)
	}

	path := "/v3/eleves/" + url.PathEscape(req.AccountID) + "/" + resource + ".awp"
	r, err := a.post(ctx, path, url.Values{"verbe": {"get"}}, map[string]string{
		headerToken: session.Token,
		headerGtk:   session.RawString(metaGtk),
	}, payload)
	if err != nil {
		if errors.Is(err, ErrLoginPage) || errors.Is(err, ErrMalformedBody) {
			resp := provider.Failed(provider.StatusTransportError, err)
			if r != nil {
				resp.HTTPStatus = r.httpStatus
			}
			return resp
		}
		return provider.TransportError(ctx, err)
	}

	resp := a.statusFromCode(r)
	if resp.Status != provider.StatusOK {
		log.Debug().Str("provider", string(a.Kind())).Str("feature", string(req.Feature)).Int("code", r.env.Code).Msg("data request refused")
		return resp
	}

	var decoded any
	switch req.Feature {
	case accounts.FeatureTimetable:
		decoded, err = a.decodeTimetable(r.env.Data, from, to)
	case accounts.FeatureGrades:
		decoded, err = a.decodeGrades(r.env.Data)
	case accounts.FeatureHomework:
		decoded, err = a.decodeHomework(r.env.Data, from, to)
	case accounts.FeatureSchoolLife:
		decoded, err = a.decodeSchoolLife(r.env.Data)
	}
	if err != nil {
		return provider.Failed(provider.StatusTransportError, errors.Wrapf(ErrMalformedBody, "[Adapter.Fetch] %s: %v", req.Feature, err))
	}
	resp.Payload = decoded
	return resp
}

func (a *Adapter) statusFromCode(r *reply) provider.Response {
	resp := provider.Response{HTTPStatus: r.httpStatus, ProviderCode: itoa(int64(r.env.Code))}
	switch {
	case r.env.Code == codeSuccess:
		resp.Status = provider.StatusOK
	case slices.Contains(expiredCodes, r.env.Code):
		resp.Status = provider.StatusAuthExpired
	case r.env.Code == codeDenied || r.env.Code == codeDeniedModule:
		resp.Status = provider.StatusDenied
	case r.env.Code == codeNotFound:
		resp.Status = provider.StatusNotFound
	default:
		resp.Status = provider.StatusTransportError
		resp.Cause = errors.Errorf("unexpected data code %d", r.env.Code)
	}
	return resp
}

// IsExpired treats token codes and an HTML login page as a dead session.
func (a *Adapter) IsExpired(resp provider.Response) bool {
	if resp.Cancelled() {
		return false
	}
	switch resp.Status {
	case provider.StatusAuthExpired:
		return true
	case provider.StatusTransportError, provider.StatusDenied:
		if errors.Is(resp.Cause, ErrLoginPage) {
			return true
		}
		for _, code := range expiredCodes {
			if resp.ProviderCode == itoa(int64(code)) {
				return true
			}
		}
	}
	return false
}

type wireLesson struct {
	ID        json.Number `json:"id"`
	Subject   string      `json:"matiere"`
	Teacher   string      `json:"prof"`
	Room      string      `json:"salle"`
	Group     string      `json:"groupe"`
	Start     string      `json:"start_date"`
	End       string      `json:"end_date"`
	Cancelled bool        `json:"isAnnule"`
	Modified  bool        `json:"isModifie"`
	Exempted  int         `json:"dispense"`
}

func (a *Adapter) decodeTimetable(raw json.RawMessage, from, to time.Time) (*provider.Timetable, error) {
	var lessons []wireLesson
	if err := json.Unmarshal(raw, &lessons); err != nil {
		return nil, err
	}
	tt := &provider.Timetable{From: from, To: to, Lessons: make([]provider.Lesson, 0, len(lessons))}
	for _, wl := range lessons {
		start, err := time.ParseInLocation(wireDateTime, wl.Start, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		end, err := time.ParseInLocation(wireDateTime, wl.End, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		status := provider.LessonScheduled
		switch {
		case wl.Cancelled:
			status = provider.LessonCancelled
		case wl.Exempted > 0:
			status = provider.LessonExempted
		case wl.Modified:
			status = provider.LessonModified
		}
		tt.Lessons = append(tt.Lessons, provider.Lesson{
			ID:      wl.ID.String(),
			Subject: wl.Subject,
			Teacher: wl.Teacher,
			Room:    wl.Room,
			Group:   wl.Group,
			Start:   start,
			End:     end,
			Status:  status,
		})
	}
	return tt.Normalize(), nil
}

type wireGrade struct {
	ID           json.Number `json:"id"`
	Subject      string      `json:"libelleMatiere"`
	Title        string      `json:"devoir"`
	Period       string      `json:"codePeriode"`
	Value        string      `json:"valeur"`
	OutOf        string      `json:"noteSur"`
	Coefficient  string      `json:"coef"`
	ClassAverage string      `json:"moyenneClasse"`
	Comment      string      `json:"commentaire"`
	Date         string      `json:"date"`
}

type wireSubjectAverage struct {
	Subject      string `json:"discipline"`
	Average      string `json:"moyenne"`
	ClassAverage string `json:"moyenneClasse"`
}

type wirePeriod struct {
	Code     string               `json:"codePeriode"`
	Subjects []wireSubjectAverage `json:"disciplines"`
}

type wireGrades struct {
	Grades  []wireGrade  `json:"notes"`
	Periods []wirePeriod `json:"periodes"`
}

func (a *Adapter) decodeGrades(raw json.RawMessage) (*provider.Grades, error) {
	var wg wireGrades
	if err := json.Unmarshal(raw, &wg); err != nil {
		return nil, err
	}
	g := &provider.Grades{}
	for _, w := range wg.Grades {
		date, err := time.ParseInLocation(wireDate, w.Date, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		g.Grades = append(g.Grades, provider.Grade{
			ID:           w.ID.String(),
			Subject:      w.Subject,
			Title:        w.Title,
			Period:       w.Period,
			Value:        strings.TrimSpace(w.Value),
			OutOf:        parseDecimal(w.OutOf),
			Coefficient:  parseDecimal(w.Coefficient),
			ClassAverage: w.ClassAverage,
			Comment:      w.Comment,
			Date:         date,
		})
	}
	for _, p := range wg.Periods {
		for _, s := range p.Subjects {
			g.Averages = append(g.Averages, provider.SubjectAverage{
				Subject:      s.Subject,
				Period:       p.Code,
				Average:      s.Average,
				ClassAverage: s.ClassAverage,
			})
		}
	}
	return g.Normalize(), nil
}

type wireHomework struct {
	ID       json.Number `json:"idDevoir"`
	Subject  string      `json:"matiere"`
	Teacher  string      `json:"nomProf"`
	GivenOn  string      `json:"donneLe"`
	Done     bool        `json:"effectue"`
	Contents string      `json:"contenu"`
}

// decodeHomework reads the due-date keyed map; contents are base64 encoded HTML.
// The backend returns every upcoming due date, so days outside [from, to] are dropped here.
func (a *Adapter) decodeHomework(raw json.RawMessage, from, to time.Time) (*provider.Homework, error) {
	var byDate map[string][]wireHomework
	if err := json.Unmarshal(raw, &byDate); err != nil {
		return nil, err
	}
	h := &provider.Homework{}
	for day, items := range byDate {
		due, err := time.ParseInLocation(wireDate, day, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		if due.Before(from) || due.After(to) {
			continue
		}
		for _, w := range items {
			given, err := time.ParseInLocation(wireDate, w.GivenOn, a.cfg.Location)
			if err != nil {
				return nil, err
			}
			text, err := decodeHTMLContent(w.Contents)
			if err != nil {
				return nil, err
			}
			h.Items = append(h.Items, provider.HomeworkItem{
				ID:          w.ID.String(),
				Subject:     w.Subject,
				Teacher:     w.Teacher,
				Description: text,
				GivenOn:     given,
				DueOn:       due,
				Done:        w.Done,
			})
		}
	}
	return h.Normalize(), nil
}

// decodeHTMLContent base64-decodes s and returns the text of the HTML fragment it contains.
func decodeHTMLContent(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	tokenizer := html.NewTokenizer(strings.NewReader(string(decoded)))
	var parts []string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(parts, " "), nil
		case html.TextToken:
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

type wireEvent struct {
	ID        json.Number `json:"id"`
	Type      string      `json:"typeElement"`
	Date      string      `json:"date"`
	Minutes   int         `json:"nbMinutes"`
	Justified bool        `json:"justifie"`
	Reason    string      `json:"motif"`
}

type wireSchoolLife struct {
	Absences  []wireEvent `json:"absencesRetards"`
	Sanctions []wireEvent `json:"sanctionsEncouragements"`
}

var eventKinds = map[string]provider.SchoolLifeKind{
	"Absence":     provider.SchoolLifeAbsence,
	"Retard":      provider.SchoolLifeLateness,
	"Punition":    provider.SchoolLifePunishment,
	"Sanction":    provider.SchoolLifePunishment,
	"Observation": provider.SchoolLifeObservation,
}

func (a *Adapter) decodeSchoolLife(raw json.RawMessage) (*provider.SchoolLife, error) {
	var ws wireSchoolLife
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, err
	}
	sl := &provider.SchoolLife{}
	for _, w := range append(ws.Absences, ws.Sanctions...) {
		kind, ok := eventKinds[w.Type]
		if !ok {
			continue
		}
		date, err := time.ParseInLocation(wireDateTime, w.Date, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		sl.Events = append(sl.Events, provider.SchoolLifeEvent{
			ID:        w.ID.String(),
			Kind:      kind,
			Date:      date,
			Duration:  time.Duration(w.Minutes) * time.Minute,
			Justified: w.Justified,
			Reason:    w.Reason,
		})
	}
	return sl.Normalize(), nil
}
