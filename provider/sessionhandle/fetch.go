package sessionhandle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-session/accounts"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/pkg/errors"
)

const (
	localDate     = "2006-01-02"
	localClock    = "15:04"
	localDateTime = "2006-01-02T15:04"
)

var featureFunctions = map[accounts.Feature]string{
	accounts.FeatureTimetable:  "timetable.list",
	accounts.FeatureGrades:     "marks.list",
	accounts.FeatureHomework:   "homework.list",
	accounts.FeatureSchoolLife: "attendance.list",
}

func (a *Adapter) Fetch(ctx context.Context, session *sessions.Session, req provider.Request) provider.Response {
	function, ok := featureFunctions[req.Feature]
	if !ok {
		return provider.Failed(provider.StatusNotFound, fmt.Errorf("feature %q not served", req.Feature))
	}
	args := map[string]any{"member": req.AccountID}
	var from, to time.Time
	if provider.DateBounded(req.Feature) {
		var err error
		if from, to, err = req.Params.DateRange(a.cfg.Now().In(a.cfg.Location)); err != nil {
			return provider.Failed(provider.StatusNotFound, err)
		}
		args["from"] = from.Format(localDate)
		args["to"] = to.Format(localDate)
	}

	raw, err := a.cfg.Client.Call(ctx, session.Token, function, args)
	if err != nil {
		var he *HandleError
		if !errors.As(err, &he) {
			return provider.TransportError(ctx, err)
		}
		resp := provider.Failed(statusFromCode(he), he)
		resp.ProviderCode = strconv.Itoa(he.Code)
		return resp
	}

	var decoded any
	switch req.Feature {
	case accounts.FeatureTimetable:
		decoded, err = a.decodeTimetable(raw, from, to)
	case accounts.FeatureGrades:
		decoded, err = a.decodeMarks(raw)
	case accounts.FeatureHomework:
		decoded, err = a.decodeHomework(raw)
	case accounts.FeatureSchoolLife:
		decoded, err = a.decodeAttendance(raw)
	}
	if err != nil {
		return provider.Failed(provider.StatusTransportError, errors.Wrapf(err, "decode %s", function))
	}
	return provider.OK(decoded)
}

func statusFromCode(he *HandleError) provider.Status {
	switch {
	case he.Expired():
		return provider.StatusAuthExpired
	case he.Code == CodeAccessDenied:
		return provider.StatusDenied
	case he.Code == CodeNotFound:
		return provider.StatusNotFound
	}
	return provider.StatusTransportError
}

// IsExpired reads the typed code; only the expired handle codes count.
func (a *Adapter) IsExpired(resp provider.Response) bool {
	if resp.Cancelled() {
		return false
	}
	if resp.Status == provider.StatusAuthExpired {
		return true
	}
	var he *HandleError
	return errors.As(resp.Cause, &he) && he.Expired()
}

type slot struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher"`
	Room      string `json:"room"`
	Group     string `json:"group"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Cancelled bool   `json:"cancelled"`
	Changed   bool   `json:"changed"`
	Exempt    bool   `json:"exempt"`
}

func (a *Adapter) at(date, clock string) (time.Time, error) {
	return time.ParseInLocation(localDate+" "+localClock, date+" "+clock, a.cfg.Location)
}

func (a *Adapter) decodeTimetable(raw json.RawMessage, from, to time.Time) (*provider.Timetable, error) {
	var payload struct {
		Slots []slot `json:"slots"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	tt := &provider.Timetable{From: from, To: to}
	for _, s := range payload.Slots {
		start, err := a.at(s.Date, s.Start)
		if err != nil {
			return nil, err
		}
		end, err := a.at(s.Date, s.End)
		if err != nil {
			return nil, err
		}
		status := provider.LessonScheduled
		switch {
		case s.Cancelled:
			status = provider.LessonCancelled
		case s.Exempt:
			status = provider.LessonExempted
		case s.Changed:
			status = provider.LessonModified
		}
		tt.Lessons = append(tt.Lessons, provider.Lesson{
			ID:      s.ID,
			Subject: s.Subject,
			Teacher: s.Teacher,
			Room:    s.Room,
			Group:   s.Group,
			Start:   start,
			End:     end,
			Status:  status,
		})
	}
	return tt.Normalize(), nil
}

type mark struct {
	ID       string  `json:"id"`
	Subject  string  `json:"subject"`
	Label    string  `json:"label"`
	Term     string  `json:"term"`
	Mark     string  `json:"mark"`
	Scale    float64 `json:"scale"`
	Weight   float64 `json:"weight"`
	ClassAvg string  `json:"class_avg"`
	Remark   string  `json:"remark"`
	Date     string  `json:"date"`
}

type termAverage struct {
	Subject  string `json:"subject"`
	Term     string `json:"term"`
	Avg      string `json:"avg"`
	ClassAvg string `json:"class_avg"`
}

func (a *Adapter) decodeMarks(raw json.RawMessage) (*provider.Grades, error) {
	var payload struct {
		Marks    []mark        `json:"marks"`
		Averages []termAverage `json:"averages"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	g := &provider.Grades{}
	for _, m := range payload.Marks {
		date, err := time.ParseInLocation(localDate, m.Date, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		g.Grades = append(g.Grades, provider.Grade{
			ID:           m.ID,
			Subject:      m.Subject,
			Title:        m.Label,
			Period:       m.Term,
			Value:        strings.TrimSpace(m.Mark),
			OutOf:        m.Scale,
			Coefficient:  m.Weight,
			ClassAverage: m.ClassAvg,
			Comment:      m.Remark,
			Date:         date,
		})
	}
	for _, av := range payload.Averages {
		g.Averages = append(g.Averages, provider.SubjectAverage{
			Subject:      av.Subject,
			Period:       av.Term,
			Average:      av.Avg,
			ClassAverage: av.ClassAvg,
		})
	}
	return g.Normalize(), nil
}

type task struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Teacher   string `json:"teacher"`
	Text      string `json:"text"`
	Assigned  string `json:"assigned"`
	Due       string `json:"due"`
	Completed bool   `json:"completed"`
}

func (a *Adapter) decodeHomework(raw json.RawMessage) (*provider.Homework, error) {
	var payload struct {
		Tasks []task `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	h := &provider.Homework{}
	for _, t := range payload.Tasks {
		given, err := time.ParseInLocation(localDate, t.Assigned, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		due, err := time.ParseInLocation(localDate, t.Due, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		h.Items = append(h.Items, provider.HomeworkItem{
			ID:          t.ID,
			Subject:     t.Subject,
			Teacher:     t.Teacher,
			Description: strings.TrimSpace(t.Text),
			GivenOn:     given,
			DueOn:       due,
			Done:        t.Completed,
		})
	}
	return h.Normalize(), nil
}

type record struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
	Excused bool   `json:"excused"`
	Comment string `json:"comment"`
}

var recordKinds = map[string]provider.SchoolLifeKind{
	"absence":   provider.SchoolLifeAbsence,
	"late":      provider.SchoolLifeLateness,
	"detention": provider.SchoolLifePunishment,
	"note":      provider.SchoolLifeObservation,
}

func (a *Adapter) decodeAttendance(raw json.RawMessage) (*provider.SchoolLife, error) {
	var payload struct {
		Records []record `json:"records"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	sl := &provider.SchoolLife{}
	for _, r := range payload.Records {
		kind, ok := recordKinds[strings.ToLower(r.Kind)]
		if !ok {
			continue
		}
		date, err := time.ParseInLocation(localDateTime, r.Date, a.cfg.Location)
		if err != nil {
			return nil, err
		}
		sl.Events = append(sl.Events, provider.SchoolLifeEvent{
			ID:        r.ID,
			Kind:      kind,
			Date:      date,
			Duration:  time.Duration(r.Minutes) * time.Minute,
			Justified: r.Excused,
			Reason:    r.Comment,
		})
	}
	return sl.Normalize(), nil
}
