package provider

import (
	"sort"
	"time"
)

type LessonStatus string

const (
	LessonScheduled LessonStatus = "scheduled"
	LessonCancelled LessonStatus = "cancelled"
	LessonModified  LessonStatus = "modified"
	LessonExempted  LessonStatus = "exempted"
)

type Lesson struct {
	ID      string
	Subject string
	Teacher string
	Room    string
	Group   string
	Start   time.Time
	End     time.Time
	Status  LessonStatus
}

type Timetable struct {
	From    time.Time
	To      time.Time
	Lessons []Lesson
}

// Normalize orders lessons by start time, then subject.
func (t *Timetable) Normalize() *Timetable {
	if t.Lessons == nil {
		t.Lessons = []Lesson{}
	}
	sort.SliceStable(t.Lessons, func(i, j int) bool {
		if !t.Lessons[i].Start.Equal(t.Lessons[j].Start) {
			return t.Lessons[i].Start.Before(t.Lessons[j].Start)
		}
		return t.Lessons[i].Subject < t.Lessons[j].Subject
	})
	return t
}

// Grade keeps Value as text: backends report non-numeric marks such as "Abs".
type Grade struct {
	ID           string
	Subject      string
	Title        string
	Period       string
	Value        string
	OutOf        float64
	Coefficient  float64
	ClassAverage string
	Comment      string
	Date         time.Time
}

type SubjectAverage struct {
	Subject      string
	Period       string
	Average      string
	ClassAverage string
}

type Grades struct {
	Grades   []Grade
	Averages []SubjectAverage
}

// Normalize orders grades newest first and averages by subject.
func (g *Grades) Normalize() *Grades {
	if g.Grades == nil {
		g.Grades = []Grade{}
	}
	if g.Averages == nil {
		g.Averages = []SubjectAverage{}
	}
	sort.SliceStable(g.Grades, func(i, j int) bool {
		if !g.Grades[i].Date.Equal(g.Grades[j].Date) {
			return g.Grades[i].Date.After(g.Grades[j].Date)
		}
		return g.Grades[i].Subject < g.Grades[j].Subject
	})
	sort.SliceStable(g.Averages, func(i, j int) bool {
		if g.Averages[i].Period != g.Averages[j].Period {
			return g.Averages[i].Period < g.Averages[j].Period
		}
		return g.Averages[i].Subject < g.Averages[j].Subject
	})
	return g
}

type HomeworkItem struct {
	ID          string
	Subject     string
	Teacher     string
	Description string
	GivenOn     time.Time
	DueOn       time.Time
	Done        bool
}

type Homework struct {
	Items []HomeworkItem
}

// Normalize orders items by due date, then subject and id.
func (h *Homework) Normalize() *Homework {
	if h.Items == nil {
		h.Items = []HomeworkItem{}
	}
	sort.SliceStable(h.Items, func(i, j int) bool {
		if !h.Items[i].DueOn.Equal(h.Items[j].DueOn) {
			return h.Items[i].DueOn.Before(h.Items[j].DueOn)
		}
		if h.Items[i].Subject != h.Items[j].Subject {
			return h.Items[i].Subject < h.Items[j].Subject
		}
		return h.Items[i].ID < h.Items[j].ID
	})
	return h
}

type SchoolLifeKind string

const (
	SchoolLifeAbsence     SchoolLifeKind = "absence"
	SchoolLifeLateness    SchoolLifeKind = "lateness"
	SchoolLifePunishment  SchoolLifeKind = "punishment"
	SchoolLifeObservation SchoolLifeKind = "observation"
)

type SchoolLifeEvent struct {
	ID        string
	Kind      SchoolLifeKind
	Date      time.Time
	Duration  time.Duration
	Justified bool
	Reason    string
}

type SchoolLife struct {
	Events []SchoolLifeEvent
}

// Normalize orders events newest first.
func (s *SchoolLife) Normalize() *SchoolLife {
	if s.Events == nil {
		s.Events = []SchoolLifeEvent{}
	}
	sort.SliceStable(s.Events, func(i, j int) bool {
		return s.Events[i].Date.After(s.Events[j].Date)
	})
	return s
}
