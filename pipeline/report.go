package pipeline

// Kind identifies what an Outcome was produced for
type Kind int

const (
	KindImage Kind = iota
	KindArchive
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindArchive:
		return "archive"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one image, archive or unreadable directory.
// Paths inside archives are shown as "outer.zip!inner/path".
type Outcome struct {
	Kind        Kind
	Source      string
	Destination string
	Err         error
}

// OK reports whether the entry was processed successfully
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report collects the outcomes of a walk in processing order
type Report struct {
	Outcomes []Outcome
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Succeeded returns the number of successful outcomes
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed outcomes
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Failures returns the failed outcomes
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}
