package pipeline

import (
	"fmt"

	"github.com/thaybinh/hoso7991/internal/model"
)

// MatrixRowPatch holds the editable fields of a matrix row. Nil fields
// are left untouched; negative counts clamp to zero.
type MatrixRowPatch struct {
	Topic   *string `json:"topic,omitempty"`
	Content *string `json:"content,omitempty"`
	MCQNB   *int    `json:"mcq_nb,omitempty"`
	MCQTH   *int    `json:"mcq_th,omitempty"`
	MCQVD   *int    `json:"mcq_vd,omitempty"`
	TFNB    *int    `json:"tf_nb,omitempty"`
	TFTH    *int    `json:"tf_th,omitempty"`
	TFVD    *int    `json:"tf_vd,omitempty"`
	ShortNB *int    `json:"short_nb,omitempty"`
	ShortTH *int    `json:"short_th,omitempty"`
	ShortVD *int    `json:"short_vd,omitempty"`
	EssayNB *int    `json:"essay_nb,omitempty"`
	EssayTH *int    `json:"essay_th,omitempty"`
	EssayVD *int    `json:"essay_vd,omitempty"`
	Percent *int    `json:"percent,omitempty"`
}

// SpecItemPatch holds the editable fields of a specification item.
type SpecItemPatch struct {
	Topic   *string `json:"topic,omitempty"`
	Outcome *string `json:"outcome,omitempty"`
	MCQNB   *int    `json:"mcq_nb,omitempty"`
	MCQTH   *int    `json:"mcq_th,omitempty"`
	MCQVD   *int    `json:"mcq_vd,omitempty"`
	TFNB    *int    `json:"tf_nb,omitempty"`
	TFTH    *int    `json:"tf_th,omitempty"`
	TFVD    *int    `json:"tf_vd,omitempty"`
	ShortNB *int    `json:"short_nb,omitempty"`
	ShortTH *int    `json:"short_th,omitempty"`
	ShortVD *int    `json:"short_vd,omitempty"`
	EssayNB *int    `json:"essay_nb,omitempty"`
	EssayTH *int    `json:"essay_th,omitempty"`
	EssayVD *int    `json:"essay_vd,omitempty"`
}

// ExamQuestionPatch holds the editable fields of an exam question.
// A non-nil empty Options slice removes the options.
type ExamQuestionPatch struct {
	Text    *string   `json:"text,omitempty"`
	Options *[]string `json:"options,omitempty"`
}

// UpdateMatrixRow applies patch to the matrix row at index. The row
// collection is copied, never mutated in place, and the draft persists
// immediately.
func (o *Orchestrator) UpdateMatrixRow(index int, patch MatrixRowPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.bundle.Matrix == nil || index < 0 || index >= len(o.bundle.Matrix.Rows) {
		return fmt.Errorf("no matrix row at index %d", index)
	}

	rows := make([]model.MatrixRow, len(o.bundle.Matrix.Rows))
	copy(rows, o.bundle.Matrix.Rows)
	row := rows[index]

	setString(&row.Topic, patch.Topic)
	setString(&row.Content, patch.Content)
	setCount(&row.MCQNB, patch.MCQNB)
	setCount(&row.MCQTH, patch.MCQTH)
	setCount(&row.MCQVD, patch.MCQVD)
	setCount(&row.TFNB, patch.TFNB)
	setCount(&row.TFTH, patch.TFTH)
	setCount(&row.TFVD, patch.TFVD)
	setCount(&row.ShortNB, patch.ShortNB)
	setCount(&row.ShortTH, patch.ShortTH)
	setCount(&row.ShortVD, patch.ShortVD)
	setCount(&row.EssayNB, patch.EssayNB)
	setCount(&row.EssayTH, patch.EssayTH)
	setCount(&row.EssayVD, patch.EssayVD)
	setCount(&row.Percent, patch.Percent)

	rows[index] = row
	o.bundle.Matrix = &model.MatrixData{Rows: rows}
	return o.persist()
}

// UpdateSpecItem applies patch to the specification item at index.
func (o *Orchestrator) UpdateSpecItem(index int, patch SpecItemPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.bundle.Spec == nil || index < 0 || index >= len(o.bundle.Spec.Items) {
		return fmt.Errorf("no spec item at index %d", index)
	}

	items := make([]model.SpecItem, len(o.bundle.Spec.Items))
	copy(items, o.bundle.Spec.Items)
	item := items[index]

	setString(&item.Topic, patch.Topic)
	setString(&item.Outcome, patch.Outcome)
	setCount(&item.MCQNB, patch.MCQNB)
	setCount(&item.MCQTH, patch.MCQTH)
	setCount(&item.MCQVD, patch.MCQVD)
	setCount(&item.TFNB, patch.TFNB)
	setCount(&item.TFTH, patch.TFTH)
	setCount(&item.TFVD, patch.TFVD)
	setCount(&item.ShortNB, patch.ShortNB)
	setCount(&item.ShortTH, patch.ShortTH)
	setCount(&item.ShortVD, patch.ShortVD)
	setCount(&item.EssayNB, patch.EssayNB)
	setCount(&item.EssayTH, patch.EssayTH)
	setCount(&item.EssayVD, patch.EssayVD)

	items[index] = item
	o.bundle.Spec = &model.SpecData{Items: items}
	return o.persist()
}

// UpdateExamQuestion applies patch to the exam question at index.
func (o *Orchestrator) UpdateExamQuestion(index int, patch ExamQuestionPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.bundle.Exam == nil || index < 0 || index >= len(o.bundle.Exam.Questions) {
		return fmt.Errorf("no exam question at index %d", index)
	}

	questions := make([]model.ExamQuestion, len(o.bundle.Exam.Questions))
	copy(questions, o.bundle.Exam.Questions)
	q := questions[index]

	setString(&q.Text, patch.Text)
	if patch.Options != nil {
		opts := make([]string, len(*patch.Options))
		copy(opts, *patch.Options)
		if len(opts) == 0 {
			opts = nil
		}
		q.Options = opts
	}

	questions[index] = q
	o.bundle.Exam = &model.ExamData{Questions: questions}
	return o.persist()
}

// persist saves the current bundle under the current input key.
// Callers must hold mu.
func (o *Orchestrator) persist() error {
	if err := o.store.SaveDraft(draftKey(o.input), o.bundle); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setCount(dst *int, v *int) {
	if v == nil {
		return
	}
	n := *v
	if n < 0 {
		n = 0
	}
	*dst = n
}
