package model

// Stage represents one phase of the document pipeline.
type Stage string

const (
	StageInput   Stage = "INPUT"
	StageMatrix  Stage = "MATRIX"
	StageSpec    Stage = "SPEC"
	StageExam    Stage = "EXAM"
	StageAnswers Stage = "ANSWERS"
)

// Stages lists the pipeline phases in order.
var Stages = []Stage{StageInput, StageMatrix, StageSpec, StageExam, StageAnswers}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// ExamInput holds the user-supplied exam parameters.
type ExamInput struct {
	Subject           string `json:"subject" validate:"required"`
	Grade             string `json:"grade" validate:"required"`
	Semester          string `json:"semester" validate:"required"`
	Time              string `json:"time"`
	Topics            string `json:"topics"`
	Outcomes          string `json:"outcomes"`
	SchoolName        string `json:"schoolName"`
	ReferenceMaterial string `json:"referenceMaterial"`
	MCQCount          int    `json:"mcqCount" validate:"gte=0"`
	TFCount           int    `json:"tfCount" validate:"gte=0"`
	ShortCount        int    `json:"shortCount" validate:"gte=0"`
	EssayCount        int    `json:"essayCount" validate:"gte=0"`
}

// Normalized returns a copy with negative question counts clamped to zero.
func (in ExamInput) Normalized() ExamInput {
	in.MCQCount = clamp(in.MCQCount)
	in.TFCount = clamp(in.TFCount)
	in.ShortCount = clamp(in.ShortCount)
	in.EssayCount = clamp(in.EssayCount)
	return in
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// MatrixRow is one row of the exam matrix: a topic crossed with
// question-type counts per cognitive level (NB/TH/VD — recall,
// comprehension, application) and a percent-of-score weight.
type MatrixRow struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
	MCQNB   int    `json:"mcq_nb"`
	MCQTH   int    `json:"mcq_th"`
	MCQVD   int    `json:"mcq_vd"`
	TFNB    int    `json:"tf_nb"`
	TFTH    int    `json:"tf_th"`
	TFVD    int    `json:"tf_vd"`
	ShortNB int    `json:"short_nb"`
	ShortTH int    `json:"short_th"`
	ShortVD int    `json:"short_vd"`
	EssayNB int    `json:"essay_nb"`
	EssayTH int    `json:"essay_th"`
	EssayVD int    `json:"essay_vd"`
	Percent int    `json:"percent"`
}

// LevelTotals sums the row's counts per cognitive level across all
// question types, matching the "Tổng" columns of the printed matrix.
func (r MatrixRow) LevelTotals() (nb, th, vd int) {
	nb = r.MCQNB + r.TFNB + r.ShortNB + r.EssayNB
	th = r.MCQTH + r.TFTH + r.ShortTH + r.EssayTH
	vd = r.MCQVD + r.TFVD + r.ShortVD + r.EssayVD
	return nb, th, vd
}

// MatrixData is the matrix stage artifact.
type MatrixData struct {
	Rows []MatrixRow `json:"rows"`
}

// SpecItem is one line of the specification: a topic, the expected
// learning outcome, and the same per-level counts as the matrix row.
type SpecItem struct {
	Topic   string `json:"topic"`
	Outcome string `json:"outcome"`
	MCQNB   int    `json:"mcq_nb"`
	MCQTH   int    `json:"mcq_th"`
	MCQVD   int    `json:"mcq_vd"`
	TFNB    int    `json:"tf_nb"`
	TFTH    int    `json:"tf_th"`
	TFVD    int    `json:"tf_vd"`
	ShortNB int    `json:"short_nb"`
	ShortTH int    `json:"short_th"`
	ShortVD int    `json:"short_vd"`
	EssayNB int    `json:"essay_nb"`
	EssayTH int    `json:"essay_th"`
	EssayVD int    `json:"essay_vd"`
}

// SpecData is the specification stage artifact. It is derived from the
// matrix but not referentially linked to it: editing one does not
// propagate to the other.
type SpecData struct {
	Items []SpecItem `json:"items"`
}

// ExamQuestion is a single question on the exam paper. Options is
// present for choice-type questions and absent otherwise.
type ExamQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// ExamData is the exam stage artifact.
type ExamData struct {
	Questions []ExamQuestion `json:"questions"`
}

// MCQAnswer pairs an objective question number with its answer letter.
type MCQAnswer struct {
	Question int    `json:"question"`
	Answer   string `json:"answer"`
}

// EssayGuide is the grading guide for one essay question.
type EssayGuide struct {
	Question int     `json:"question"`
	Points   float64 `json:"points"`
	Guide    string  `json:"guide"`
}

// AnswerKeyData is the answer-key stage artifact.
type AnswerKeyData struct {
	MCQ    []MCQAnswer  `json:"mcq"`
	Essays []EssayGuide `json:"essays"`
}
