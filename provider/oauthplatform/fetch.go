package oauthplatform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/rs/zerolog/log"
)

const errInvalidToken = "invalid_token"

var featurePaths = map[accounts.Feature]string{
	accounts.FeatureTimetable:  "timetable",
	accounts.FeatureGrades:     "evaluations",
	accounts.FeatureHomework:   "assignments",
	accounts.FeatureSchoolLife: "attendance",
}

type apiError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Fetch runs one canonical request with the session's bearer token.
// A session past its known expiry is reported expired without a round trip.
func (a *Adapter) Fetch(ctx context.Context, session *sessions.Session, req provider.Request) provider.Response {
	path, ok := featurePaths[req.Feature]
	if !ok {
		return provider.Failed(provider.StatusNotFound, fmt.Errorf("feature %q not served", req.Feature))
	}
	if !session.ExpiresAt.IsZero() && !a.cfg.Now().Before(session.ExpiresAt) {
		return provider.Failed(provider.StatusAuthExpired, apperrors.ErrSessionExpired)
	}

	query := map[string]string{}
	var from, to time.Time
	if provider.DateBounded(req.Feature) {
		var err error
		if from, to, err = req.Params.DateRange(a.cfg.Now()); err != nil {
			return provider.Failed(provider.StatusNotFound, err)
		}
		query["from"] = from.Format(provider.DateLayout)
		query["to"] = to.Format(provider.DateLayout)
	}

	body, status, err := a.get(ctx, session.Token, "/users/"+url.PathEscape(req.AccountID)+"/"+path, query)
	if err != nil {
		return provider.TransportError(ctx, err)
	}

	resp := provider.Response{Status: provider.StatusFromHTTP(status), HTTPStatus: status}
	if resp.Status != provider.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			resp.ProviderCode = apiErr.Error
			resp.Cause = fmt.Errorf("%s: %s", apiErr.Error, apiErr.Description)
		} else {
			resp.Cause = fmt.Errorf("http status %d", status)
		}
		if resp.ProviderCode == errInvalidToken {
			resp.Status = provider.StatusAuthExpired
		}
		log.Debug().Str("provider", string(a.Kind())).Str("feature", string(req.Feature)).Int("status", status).Msg("data request refused")
		return resp
	}

	var decoded any
	switch req.Feature {
	case accounts.FeatureTimetable:
		decoded, err = decodeTimetable(body, from, to)
	case accounts.FeatureGrades:
		decoded, err = decodeGrades(body)
	case accounts.FeatureHomework:
		decoded, err = decodeHomework(body)
	case accounts.FeatureSchoolLife:
		decoded, err = decodeAttendance(body)
	}
	if err != nil {
		return provider.Failed(provider.StatusTransportError, fmt.Errorf("decode %s: %w", req.Feature, err))
	}
	resp.Payload = decoded
	return resp
}

// IsExpired accepts a 401 or an invalid_token error body as a dead session.
func (a *Adapter) IsExpired(resp provider.Response) bool {
	if resp.Cancelled() {
		return false
	}
	return resp.Status == provider.StatusAuthExpired ||
		resp.HTTPStatus == http.StatusUnauthorized ||
		resp.ProviderCode == errInvalidToken
}

type apiLesson struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	Teachers []string  `json:"teachers"`
	Room     string    `json:"room"`
	Group    string    `json:"group"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Status   string    `json:"status"`
}

type apiTimetable struct {
	Lessons []apiLesson `json:"lessons"`
}

var lessonStatuses = map[string]provider.LessonStatus{
	"SCHEDULED": provider.LessonScheduled,
	"CANCELLED": provider.LessonCancelled,
	"MODIFIED":  provider.LessonModified,
	"EXEMPTED":  provider.LessonExempted,
}

func decodeTimetable(body []byte, from, to time.Time) (*provider.Timetable, error) {
	var at apiTimetable
	if err := json.Unmarshal(body, &at); err != nil {
		return nil, err
	}
	tt := &provider.Timetable{From: from, To: to}
	for _, l := range at.Lessons {
		status, ok := lessonStatuses[strings.ToUpper(l.Status)]
		if !ok {
			status = provider.LessonScheduled
		}
		tt.Lessons = append(tt.Lessons, provider.Lesson{
			ID:      l.ID,
			Subject: l.Subject,
			Teacher: strings.Join(l.Teachers, ", "),
			Room:    l.Room,
			Group:   l.Group,
			Start:   l.StartsAt,
			End:     l.EndsAt,
			Status:  status,
		})
	}
	return tt.Normalize(), nil
}

type apiScore struct {
	Value *float64 `json:"value"`
	Label string   `json:"label"`
	OutOf float64  `json:"outOf"`
}

type apiEvaluation struct {
	ID           string   `json:"id"`
	Subject      string   `json:"subject"`
	Title        string   `json:"title"`
	Period       string   `json:"period"`
	Score        apiScore `json:"score"`
	Coefficient  float64  `json:"coefficient"`
	ClassAverage *float64 `json:"classAverage"`
	Comment      string   `json:"comment"`
	Date         string   `json:"date"`
}

type apiAverage struct {
	Subject      string   `json:"subject"`
	Period       string   `json:"period"`
	Average      *float64 `json:"average"`
	ClassAverage *float64 `json:"classAverage"`
}

type apiEvaluations struct {
	Evaluations []apiEvaluation `json:"evaluations"`
	Averages    []apiAverage    `json:"averages"`
}

func decodeGrades(body []byte) (*provider.Grades, error) {
	var ae apiEvaluations
	if err := json.Unmarshal(body, &ae); err != nil {
		return nil, err
	}
	g := &provider.Grades{}
	for _, e := range ae.Evaluations {
		date, err := time.Parse(provider.DateLayout, e.Date)
		if err != nil {
			return nil, err
		}
		value := e.Score.Label
		if e.Score.Value != nil {
			value = formatDecimal(e.Score.Value)
		}
		g.Grades = append(g.Grades, provider.Grade{
			ID:           e.ID,
			Subject:      e.Subject,
			Title:        e.Title,
			Period:       e.Period,
			Value:        value,
			OutOf:        e.Score.OutOf,
			Coefficient:  e.Coefficient,
			ClassAverage: formatDecimal(e.ClassAverage),
			Comment:      e.Comment,
			Date:         date,
		})
	}
	for _, av := range ae.Averages {
		g.Averages = append(g.Averages, provider.SubjectAverage{
			Subject:      av.Subject,
			Period:       av.Period,
			Average:      formatDecimal(av.Average),
			ClassAverage: formatDecimal(av.ClassAverage),
		})
	}
	return g.Normalize(), nil
}

func formatDecimal(v *float64) string {
	if v == nil {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *v), "0"), ".")
}

type apiAssignment struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Teacher      string    `json:"teacher"`
	Instructions string    `json:"instructions"`
	GivenAt      time.Time `json:"givenAt"`
	DueAt        time.Time `json:"dueAt"`
	Done         bool      `json:"done"`
}

func decodeHomework(body []byte) (*provider.Homework, error) {
	var payload struct {
		Assignments []apiAssignment `json:"assignments"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	h := &provider.Homework{}
	for _, as := range payload.Assignments {
		h.Items = append(h.Items, provider.HomeworkItem{
			ID:          as.ID,
			Subject:     as.Subject,
			Teacher:     as.Teacher,
			Description: strings.TrimSpace(as.Instructions),
			GivenOn:     as.GivenAt,
			DueOn:       as.DueAt,
			Done:        as.Done,
		})
	}
	return h.Normalize(), nil
}

type apiAttendance struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"at"`
	Minutes   int       `json:"minutes"`
	Justified bool      `json:"justified"`
	Reason    string    `json:"reason"`
}

var attendanceKinds = map[string]provider.SchoolLifeKind{
	"ABSENCE":     provider.SchoolLifeAbsence,
	"LATENESS":    provider.SchoolLifeLateness,
	"SANCTION":    provider.SchoolLifePunishment,
	"OBSERVATION": provider.SchoolLifeObservation,
}

func decodeAttendance(body []byte) (*provider.SchoolLife, error) {
	var payload struct {
		Events []apiAttendance `json:"events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	sl := &provider.SchoolLife{}
	for _, e := range payload.Events {
		kind, ok := attendanceKinds[strings.ToUpper(e.Type)]
		if !ok {
			continue
		}
		sl.Events = append(sl.Events, provider.SchoolLifeEvent{
			ID:        e.ID,
			Kind:      kind,
			Date:      e.At,
			Duration:  time.Duration(e.Minutes) * time.Minute,
			Justified: e.Justified,
			Reason:    e.Reason,
		})
	}
	return sl.Normalize(), nil
}
