package accounts

import "sort"

// Feature names one canonical data operation.
type Feature string

const (
	FeatureTimetable  Feature = "timetable"
	FeatureGrades     Feature = "grades"
	FeatureHomework   Feature = "homework"
	FeatureSchoolLife Feature = "school_life"
)

// AllFeatures lists every canonical feature.
var AllFeatures = []Feature{FeatureTimetable, FeatureGrades, FeatureHomework, FeatureSchoolLife}

// FeatureSet is the set of features an account may request.
type FeatureSet map[Feature]struct{}

func NewFeatureSet(features ...Feature) FeatureSet {
	set := make(FeatureSet, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return set
}

func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

// Sorted returns the features in a stable order.
func (s FeatureSet) Sorted() []Feature {
	out := make([]Feature, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Kind tells whether an account is the student themselves or a parent acting for a child.
type Kind string

const (
	KindStudent Kind = "student"
	KindParent  Kind = "parent"
)

type Establishment struct {
	ID   string
	Name string
}

type Profile struct {
	FirstName string
	LastName  string
	ClassName string
	Email     string
	PhotoURL  string
}

// Account is the canonical record every adapter produces.
// A parent login yields one Account per child, each with Kind KindParent.
type Account struct {
	ID            string
	DisplayName   string
	Kind          Kind
	Establishment Establishment
	Profile       Profile
	Capabilities  FeatureSet
}

// Can reports whether the account may request f.
func (a Account) Can(f Feature) bool {
	return a.Capabilities.Has(f)
}
